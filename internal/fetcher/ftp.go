package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures source downloads over FTP. Credentials in the URL take
// precedence over User and Password; with neither the login is anonymous.
type FTPOptions struct {
	Timeout  time.Duration
	User     string
	Password string
}

// FTPFetcher downloads data tables and boundary archives from FTP mirrors.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher returns an FTPFetcher with a 30s dial timeout by default.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.User == "" {
		opts.User, opts.Password = "anonymous", "anonymous@"
	}
	return &FTPFetcher{opts: opts}
}

// ftpSource is one remote file: server address, file path and login.
type ftpSource struct {
	addr string
	path string
	user string
	pass string
}

func (f *FTPFetcher) source(rawURL string) (ftpSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpSource{}, eris.Wrap(err, "ftp: parse source url")
	}
	if u.Scheme != "ftp" {
		return ftpSource{}, eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return ftpSource{}, eris.Errorf("ftp: %q does not name a file", rawURL)
	}

	src := ftpSource{addr: u.Host, path: u.Path, user: f.opts.User, pass: f.opts.Password}
	if _, _, splitErr := net.SplitHostPort(src.addr); splitErr != nil {
		src.addr = net.JoinHostPort(src.addr, "21")
	}
	if u.User != nil {
		src.user = u.User.Username()
		src.pass, _ = u.User.Password()
	}
	return src, nil
}

func (f *FTPFetcher) open(ctx context.Context, rawURL string) (*ftpBody, error) {
	src, err := f.source(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := ftp.Dial(src.addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, unavailable(err, "ftp: dial %s", src.addr)
	}
	if err := conn.Login(src.user, src.pass); err != nil {
		_ = conn.Quit()
		return nil, unavailable(err, "ftp: login %s as %s", src.addr, src.user)
	}

	// not every server answers SIZE; -1 disables the length check
	size, err := conn.FileSize(src.path)
	if err != nil {
		size = -1
	}

	resp, err := conn.Retr(src.path)
	if err != nil {
		_ = conn.Quit()
		return nil, unavailable(err, "ftp: retrieve %s", src.path)
	}
	zap.L().Debug("ftp: source opened",
		zap.String("addr", src.addr),
		zap.String("path", src.path),
		zap.Int64("size", size),
	)
	return &ftpBody{resp: resp, conn: conn, size: size}, nil
}

// ftpBody reads one transfer and closes the control connection with it.
type ftpBody struct {
	resp *ftp.Response
	conn *ftp.ServerConn
	size int64
}

func (b *ftpBody) Read(p []byte) (int, error) {
	return b.resp.Read(p)
}

func (b *ftpBody) Close() error {
	respErr := b.resp.Close()
	quitErr := b.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "ftp: close transfer")
	}
	if quitErr != nil {
		return eris.Wrap(quitErr, "ftp: quit")
	}
	return nil
}

// Download returns a reader over the remote file. Closing it ends the session.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return f.open(ctx, rawURL)
}

// DownloadToFile copies the remote file to path. A transfer shorter than the
// size the server reported is treated as an unavailable source, so a truncated
// boundary archive never reaches the ZIP reader.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.open(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	n, err := writeFile(path, body)
	if err != nil {
		return n, unavailable(err, "ftp: save %s", rawURL)
	}
	if err := checkLength(n, body.size); err != nil {
		return n, unavailable(err, "ftp: %s", rawURL)
	}
	return n, nil
}

func checkLength(got, want int64) error {
	if want >= 0 && got != want {
		return eris.Errorf("short transfer: got %d of %d bytes", got, want)
	}
	return nil
}
