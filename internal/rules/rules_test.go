package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesBuiltinUnitFixes(t *testing.T) {
	t.Parallel()

	set, err := Load("", 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	cases := map[string]string{
		"chicken 200 grammes":         "chicken 200 grams",
		"oats 150gm":                  "oats 150 grams",
		"I ran 20 mins":               "I ran 20 minutes",
		"walked for half an hour":     "walked for 30 minutes",
		"about 300 kcal":              "about 300 calories",
		"  rice   one cup  ":          "rice one cup",
		"I walked 30 minutes already": "I walked 30 minutes already",
	}
	for input, want := range cases {
		got, err := set.Apply(input)
		if err != nil {
			t.Fatalf("apply %q failed: %v", input, err)
		}
		if got != want {
			t.Fatalf("%q: expected %q, got %q", input, want, got)
		}
	}
}

func TestLoadAppendsUserRules(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "substitutions.rules")
	contents := `
# food names the transcriber keeps mangling
keen wah => quinoa
s/\bgreek yoghurt\b/greek yogurt/g
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	set, err := Load(path, 30)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if set.Len() != len(builtin)+2 {
		t.Fatalf("expected built-ins plus two rules, got %d", set.Len())
	}

	got, _ := set.Apply("Keen Wah 100 grammes and Greek yoghurt")
	if got != "quinoa 100 grams and greek yogurt" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLoadMissingFileUsesBuiltinsOnly(t *testing.T) {
	t.Parallel()

	set, err := Load(filepath.Join(t.TempDir(), "missing.rules"), 30)
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if set.Len() != len(builtin) {
		t.Fatalf("expected built-ins only, got %d", set.Len())
	}
}

func TestLoadRejectsBadUserRule(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.rules")
	if err := os.WriteFile(path, []byte("not a rule"), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	if _, err := Load(path, 30); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyIteratesUntilStable(t *testing.T) {
	t.Parallel()

	set, err := Parse("b => c\na => b", 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, _ := set.Apply("a")
	if got != "c" {
		t.Fatalf("expected c, got %q", got)
	}
}

func TestApplyStopsAtIterationLimit(t *testing.T) {
	t.Parallel()

	set, err := Parse(`s/x/xx/`, 3)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, _ := set.Apply("x")
	if got != "xxxx" {
		t.Fatalf("expected three passes, got %q", got)
	}
}

func TestLiteralRulesMatchWholeWords(t *testing.T) {
	t.Parallel()

	set, err := Parse("egg => eggs", 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, _ := set.Apply("eggplant and egg")
	if got != "eggplant and eggs" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestSubstitutionWithoutGlobalReplacesFirstMatch(t *testing.T) {
	t.Parallel()

	set, err := Parse(`s/rice/brown rice/`, 1)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, _ := set.Apply("rice and rice")
	if got != "brown rice and rice" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestSubstitutionFlagsAndDelimiters(t *testing.T) {
	t.Parallel()

	set, err := Parse(`s|Oz|ounces|gI`, 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, _ := set.Apply("4 oz or 4 Oz")
	if got != "4 oz or 4 ounces" {
		t.Fatalf("case-sensitive flag ignored: %q", got)
	}

	if _, err := Parse(`s/a/b/x`, 5); err == nil {
		t.Fatalf("expected unsupported flag error")
	}
	if _, err := Parse(`s/a/b`, 5); err == nil {
		t.Fatalf("expected unterminated error")
	}
	if _, err := Parse(" => x", 5); err == nil {
		t.Fatalf("expected empty source error")
	}
}

func TestSubstitutionEscapedDelimiter(t *testing.T) {
	t.Parallel()

	set, err := Parse(`s/1\/2 cup/half cup/`, 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, _ := set.Apply("oats 1/2 cup")
	if got != "oats half cup" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestLiteralRuleStartingWithS(t *testing.T) {
	t.Parallel()

	set, err := Parse("soy milk => soymilk", 5)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got, _ := set.Apply("a cup of soy milk")
	if got != "a cup of soymilk" {
		t.Fatalf("unexpected output: %q", got)
	}
}
