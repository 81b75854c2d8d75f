package utils

import "strings"

// '!' is used as the LIKE escape character; pair patterns with ESCAPE '!'.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// ContainsPattern turns a search term into a lower-cased %term% pattern with
// the LIKE wildcards in term matched literally.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
