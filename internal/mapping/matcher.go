package mapping

import "fmt"

// TableField is one named attribute of the remote ticketing table schema.
type TableField struct {
	Name     string
	Required bool
}

// fieldSynonyms maps the normalized name of a common ticketing field to an
// ordered list of repository attributes that usually carry the same data.
// Candidates are tried in order; the first one present wins.
var fieldSynonyms = map[string][]string{
	"shortdescription": {"description", "name"},
	"assignmentgroup":  {"owner_login", "owner"},
	"assignedto":       {"owner_login", "owner"},
	"syscreatedon":     {"created_at"},
	"sysupdatedon":     {"updated_at"},
	"openedat":         {"created_at"},
	"url":              {"html_url"},
}

// fuzzyThresholdPercent is the minimum accepted similarity, in percent. The
// threshold check and candidate ranking use integer cross-multiplication so
// that a pair scoring exactly 0.78 is accepted regardless of float rounding.
const fuzzyThresholdPercent = 78

// Suggest proposes a best-effort correspondence from table fields to
// repository fields, with one explanatory note per match. For each table
// field it tries, in order: exact normalized match, synonym lookup, fuzzy
// similarity of at least 0.78. Table fields with no match are omitted.
//
// The repoFields slice order is significant: fuzzy ties resolve to the
// first-seen maximum, so fixed inputs always yield identical output.
func Suggest(tableFields []TableField, repoFields []string) (map[string]string, []string) {
	normRepo := make([]string, len(repoFields))
	for i, name := range repoFields {
		normRepo[i] = Normalize(name)
	}

	result := make(map[string]string)
	var notes []string

	for _, tf := range tableFields {
		key := Normalize(tf.Name)
		if key == "" {
			continue
		}

		if idx := indexOfNormalized(normRepo, key); idx >= 0 {
			result[tf.Name] = repoFields[idx]
			notes = append(notes, fmt.Sprintf("%s: exact match with %s", tf.Name, repoFields[idx]))
			continue
		}

		if candidates, ok := fieldSynonyms[key]; ok {
			if idx := firstSynonymIndex(normRepo, candidates); idx >= 0 {
				result[tf.Name] = repoFields[idx]
				notes = append(notes, fmt.Sprintf("%s: synonym match with %s", tf.Name, repoFields[idx]))
				continue
			}
		}

		if idx, dist, maxLen := bestFuzzyCandidate(normRepo, key); idx >= 0 {
			if 100*(maxLen-dist) >= fuzzyThresholdPercent*maxLen {
				score := float64(maxLen-dist) / float64(maxLen)
				result[tf.Name] = repoFields[idx]
				notes = append(notes, fmt.Sprintf("%s: fuzzy match with %s (score %.2f)", tf.Name, repoFields[idx], score))
			}
		}
	}

	return result, notes
}

// indexOfNormalized returns the first repository field whose normalized name
// equals the key, or -1.
func indexOfNormalized(normRepo []string, key string) int {
	for i, name := range normRepo {
		if name != "" && name == key {
			return i
		}
	}
	return -1
}

// firstSynonymIndex returns the first repository field matching any synonym
// candidate, honoring candidate order before repository order.
func firstSynonymIndex(normRepo []string, candidates []string) int {
	for _, candidate := range candidates {
		if idx := indexOfNormalized(normRepo, Normalize(candidate)); idx >= 0 {
			return idx
		}
	}
	return -1
}

// bestFuzzyCandidate scans the repository fields for the highest similarity
// against the key and returns the winning index with its edit distance and
// comparison length. Ties keep the first-seen candidate.
func bestFuzzyCandidate(normRepo []string, key string) (idx, dist, maxLen int) {
	idx = -1
	for i, name := range normRepo {
		if name == "" {
			continue
		}
		d := editDistance(key, name)
		m := len(key)
		if len(name) > m {
			m = len(name)
		}
		// Strictly-greater ratio comparison via cross-multiplication:
		// (m-d)/m > (maxLen-dist)/maxLen.
		if idx < 0 || (m-d)*maxLen > (maxLen-dist)*m {
			idx, dist, maxLen = i, d, m
		}
	}
	return idx, dist, maxLen
}
