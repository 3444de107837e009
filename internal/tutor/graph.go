package tutor

import "sort"

// conceptGraph orders study topics by prerequisite. Edges point from a topic
// to the topics it unlocks.
var conceptGraph = map[string][]string{
	"Basics":              {"Loops", "Functions"},
	"Loops":               {"Recursion", "Sorting"},
	"Functions":           {"OOP"},
	"Sorting":             {"Searching", "Graphs"},
	"Recursion":           {"Dynamic Programming"},
	"Graphs":              {"Dynamic Programming"},
	"OOP":                 {"Design Patterns"},
	"Dynamic Programming": {},
}

// graphRoots are the entry points suggested when nothing is mastered yet.
var graphRoots = []string{"Basics"}

// NextTopics suggests what to study next: the unlocked successors of every
// mastered topic, minus topics already mastered. With no mastery yet it
// returns the graph roots. The result is sorted for stable output.
func NextTopics(mastered map[string]bool) []string {
	if len(mastered) == 0 {
		return append([]string(nil), graphRoots...)
	}

	seen := make(map[string]bool)
	var out []string
	for topic := range mastered {
		for _, next := range conceptGraph[topic] {
			if mastered[next] || seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
		}
	}
	if len(out) == 0 {
		// Everything reachable is mastered; nothing left to unlock.
		return nil
	}
	sort.Strings(out)
	return out
}

// KnownTopic reports whether the graph tracks the topic.
func KnownTopic(topic string) bool {
	_, ok := conceptGraph[topic]
	return ok
}
