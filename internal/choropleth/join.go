package choropleth

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/bivariate-map/internal/bivariate"
	"github.com/sells-group/bivariate-map/internal/model"
)

// Region is a boundary feature and, when the join found one, its assignment.
type Region struct {
	Feature    model.Feature
	Assignment *Assignment
}

// Matched reports whether the feature joined to a table row.
func (r Region) Matched() bool { return r.Assignment != nil }

// Fill returns the region's color, or def when it did not match.
func (r Region) Fill(def bivariate.Color) bivariate.Color {
	if r.Assignment == nil {
		return def
	}
	return r.Assignment.Color
}

// Hatch returns the overlays for the region. Unmatched regions get none.
func (r Region) Hatch() Hatch {
	if r.Assignment == nil {
		return HatchNone
	}
	return r.Assignment.Hatch
}

// JoinResult is the left join of features to assignments.
type JoinResult struct {
	Regions           []Region
	UnmatchedEntities []string // table rows with no boundary
	UnmatchedFeatures []string // boundaries with no table row
}

// Matched returns the number of regions that joined.
func (j JoinResult) Matched() int {
	var n int
	for _, r := range j.Regions {
		if r.Matched() {
			n++
		}
	}
	return n
}

// JoinOptions tunes name matching.
type JoinOptions struct {
	// Aliases maps a table name to the boundary name it should join.
	Aliases map[string]string
}

// Join keeps every feature in order and attaches the assignment whose entity
// name matches the feature name. Names are compared after NFC normalization
// and whitespace folding, then case-insensitively. When several rows fold to
// the same name, only the first one is reachable by a case-insensitive match.
// Misses are reported, not fatal.
func Join(features []model.Feature, assignments []Assignment, opts JoinOptions) JoinResult {
	folder := cases.Fold()
	foldKey := func(k string) string { return folder.String(k) }

	// alias keys match case-insensitively; config loaders lower-case map keys
	aliases := make(map[string]string, len(opts.Aliases))
	for from, to := range opts.Aliases {
		aliases[foldKey(nameKey(from))] = to
	}

	used := make([]bool, len(assignments))
	exact := make(map[string]int, len(assignments))
	folded := make(map[string]int, len(assignments))
	for i, a := range assignments {
		name := a.Entity.Name
		if to, ok := aliases[foldKey(nameKey(name))]; ok {
			name = to
		}
		k := nameKey(name)
		if _, dup := exact[k]; dup {
			zap.L().Warn("choropleth: duplicate table row, keeping first", zap.String("name", a.Entity.Name))
			used[i] = true
			continue
		}
		exact[k] = i
		if j, dup := folded[foldKey(k)]; dup {
			zap.L().Warn("choropleth: names differ only by case, case-insensitive match keeps first",
				zap.String("kept", assignments[j].Entity.Name), zap.String("name", a.Entity.Name))
			continue
		}
		folded[foldKey(k)] = i
	}

	res := JoinResult{Regions: make([]Region, len(features))}
	for fi, f := range features {
		res.Regions[fi] = Region{Feature: f}
		k := nameKey(f.Name)
		i, ok := exact[k]
		if !ok {
			i, ok = folded[foldKey(k)]
		}
		if !ok {
			res.UnmatchedFeatures = append(res.UnmatchedFeatures, f.Name)
			continue
		}
		res.Regions[fi].Assignment = &assignments[i]
		used[i] = true
	}
	for i, a := range assignments {
		if !used[i] {
			res.UnmatchedEntities = append(res.UnmatchedEntities, a.Entity.Name)
		}
	}
	return res
}

func nameKey(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
