package tutor

import (
	"reflect"
	"testing"
)

func TestNextTopics(t *testing.T) {
	tests := []struct {
		name     string
		mastered []string
		want     []string
	}{
		{"nothing mastered suggests roots", nil, []string{"Basics"}},
		{"basics unlocks loops and functions", []string{"Basics"}, []string{"Functions", "Loops"}},
		{"mastered successors excluded", []string{"Basics", "Loops"}, []string{"Functions", "Recursion", "Sorting"}},
		{"converging edges deduplicated", []string{"Recursion", "Graphs"}, []string{"Dynamic Programming"}},
		{"terminal topic unlocks nothing", []string{"Dynamic Programming"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mastered := make(map[string]bool)
			for _, m := range tt.mastered {
				mastered[m] = true
			}
			got := NextTopics(mastered)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NextTopics(%v) = %v, want %v", tt.mastered, got, tt.want)
			}
		})
	}
}

func TestKnownTopic(t *testing.T) {
	if !KnownTopic("Basics") {
		t.Errorf("Basics should be known")
	}
	if KnownTopic("Underwater Basket Weaving") {
		t.Errorf("unknown topic reported as known")
	}
}
