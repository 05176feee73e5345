package checker

import (
	"reflect"
	"testing"
)

func TestCheckMatchesWholeTokens(t *testing.T) {
	verdict := Check("Ce message est RACISTE!", []string{"raciste"})
	if !verdict.Guilty {
		t.Fatalf("expected guilty verdict")
	}
	if !reflect.DeepEqual(verdict.MatchedWords, []string{"raciste"}) {
		t.Fatalf("unexpected matches: %v", verdict.MatchedWords)
	}
}

func TestCheckIgnoresSubstrings(t *testing.T) {
	if verdict := Check("a classic assessment", []string{"ass"}); verdict.Guilty {
		t.Fatalf("substring should not match: %v", verdict.MatchedWords)
	}
}

func TestCheckFoldsAccents(t *testing.T) {
	verdict := Check("tu es xénophobe", []string{"xenophobe"})
	if !verdict.Guilty {
		t.Fatalf("expected accent-folded match")
	}
}

func TestCheckPhrases(t *testing.T) {
	banned := []string{"free nitro", "scam"}
	verdict := Check("Get FREE... nitro here", banned)
	if !reflect.DeepEqual(verdict.MatchedWords, []string{"free nitro"}) {
		t.Fatalf("unexpected matches: %v", verdict.MatchedWords)
	}
	if verdict := Check("nitro is free", banned); verdict.Guilty {
		t.Fatalf("phrase tokens must be contiguous and ordered")
	}
}

func TestCheckReportsEachWordOnceInListOrder(t *testing.T) {
	verdict := Check("beta alpha beta alpha", []string{"alpha", "gamma", "beta", "ALPHA"})
	if !reflect.DeepEqual(verdict.MatchedWords, []string{"alpha", "beta"}) {
		t.Fatalf("unexpected matches: %v", verdict.MatchedWords)
	}
}

func TestCheckEmptyInputs(t *testing.T) {
	if Check("", []string{"x"}).Guilty {
		t.Fatalf("empty text cannot be guilty")
	}
	if Check("hello", nil).Guilty {
		t.Fatalf("empty list cannot match")
	}
	if Check("hello", []string{"  ", "!!"}).Guilty {
		t.Fatalf("blank entries must be ignored")
	}
}
