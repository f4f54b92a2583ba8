package condition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pulseboard/pulseboard/internal/models"
)

type fakeRecords struct {
	sets      map[string][]models.Record
	lastLimit int
	err       error
}

func (f *fakeRecords) LatestRecords(ctx context.Context, sigSet string, limit int) ([]models.Record, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.sets[sigSet], nil
}

func testSource() *fakeRecords {
	return &fakeRecords{sets: map[string][]models.Record{
		"regular": {
			{"id": "9", "siga": 696.0, "sigb": "ahoj", "sigc": true},
			{"id": "8", "siga": -69.0, "sigb": "jak", "sigc": false},
			{"id": "7", "siga": 96.0, "sigb": "se", "sigc": true},
			{"id": "6", "siga": 217.0, "sigb": "mas", "sigc": true},
			{"id": "5", "siga": 98.0, "sigb": "me", "sigc": false},
			{"id": "4", "siga": 159.0, "sigb": "z", "sigc": true},
			{"id": "3", "siga": 3.14, "sigb": "toho", "sigc": false},
			{"id": "2", "siga": 2.7, "sigb": "asi", "sigc": false},
			{"id": "1", "siga": 666.0, "sigb": "brzy", "sigc": true},
			{"id": "0", "siga": 22.0, "sigb": "klepne", "sigc": false},
		},
		"sparse": {
			{"id": "5", "siga": nil, "sigb": nil},
			{"id": "4", "siga": -42.6, "sigb": ""},
			{"id": "3", "siga": nil, "sigb": "se"},
			{"id": "2", "siga": 540.0, "sigb": nil},
			{"id": "1", "siga": 248.8, "sigb": "ahoj"},
			{"id": "0", "siga": nil, "sigb": "jak"},
		},
	}}
}

func TestEvaluateBooleans(t *testing.T) {
	eval := NewEvaluator(testSource(), 0)

	tests := []struct {
		name      string
		condition string
		sigSet    string
		want      bool
	}{
		{"constant true", "true", "regular", true},
		{"constant false", "false", "regular", false},
		{"arithmetic false", "1+2 == 4+3", "regular", false},
		{"arithmetic true", "1+2 == 4-1", "regular", true},
		{"equalText", `equalText("abc", "abc")`, "regular", true},
		{"latest id", `$id == "9"`, "regular", true},
		{"latest numeric", "$siga == 696", "regular", true},
		{"latest string", `equalText($sigb, "ahoj")`, "regular", true},
		{"latest bool", "$sigc", "regular", true},
		{"latest bool compare", "$sigc == true", "regular", true},
		{"sparse latest is null", "$siga == nil", "sparse", true},
		{"sparse latest not number", "$siga == 1", "sparse", false},

		{"past", `past("siga", 2) == 96`, "regular", true},
		{"past mismatch", `past("siga", 3) == 96`, "regular", false},
		{"past clamps", `past("id", 10000) == past("id", 9)`, "regular", true},
		{"past nested", `past("id", 5) == "4"`, "regular", true},
		{"past null", `past("siga", 5) == nil`, "sparse", true},

		{"avg", `avg("siga", 4) == (696 - 69 + 96 + 217) / 4`, "regular", true},
		{"avg sparse skips nulls", `avg("siga", 5) == (540 - 42.6 + 248.8) / 3`, "sparse", true},
		{"avg zero length", `avg("siga", 0) == 123`, "regular", false},
		{"avg negative length", `avg("siga", -1) == 123`, "regular", false},

		{"vari clamps", `vari("siga", 10000) == vari("siga", 10)`, "regular", true},

		{"min", `min("siga", 8) == -69`, "regular", true},
		{"min string", `equalText(min("sigb", 5), "ahoj")`, "regular", true},
		{"min empty range", `min("sigb", 0) == nil`, "regular", true},
		{"min all null", `min("siga", 1) == nil`, "sparse", true},
		{"max", `max("siga", 8) == 696`, "regular", true},
		{"max string", `equalText(max("sigb", 5), "se")`, "regular", true},
		{"max empty range", `max("siga", -1) == nil`, "regular", true},

		{"qnt median", `qnt("siga", 5, 0.5) == 98`, "regular", true},
		{"qnt top", `qnt("siga", 5, 1) == 696`, "regular", true},
		{"qnt bottom", `qnt("siga", 5, 0) == -69`, "regular", true},
		{"qnt string", `equalText(qnt("sigb", 5, 0.5), "mas")`, "regular", true},
		{"qnt out of range q", `qnt("siga", 10, 3) == nil`, "regular", true},
		{"qnt negative q", `qnt("siga", 10, -1) == -69`, "regular", true},
		{"qnt empty range", `qnt("siga", -1, 0.5) == nil`, "regular", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(context.Background(), tt.condition, tt.sigSet)
			if err != nil {
				t.Fatalf("Evaluate(%q) error: %v", tt.condition, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.condition, got, tt.want)
			}
		})
	}
}

func TestEvaluateStatements(t *testing.T) {
	eval := NewEvaluator(testSource(), 0)

	tests := []struct {
		name      string
		condition string
		want      bool
	}{
		{"function definition", "mojefun(x) = x * x\nmojefun(5) == 25", true},
		{"function definition semicolon", "mojefun(x) = x * x; mojefun(5) == 26", false},
		{"variable definition", "mojevar = 1 + 2\nmojevar == 5 - 2", true},
		{"variable definition semicolon", "mojevar = 1 + 2; 5 - 3 == mojevar", false},
		{
			"functions and variables together",
			"mojefunc(x) = x * x\nfr(x, y) = x + y\nmojevar = 6 + 4; vr = 5\nmojefunc(mojevar) == fr(vr, 95)",
			true,
		},
		{
			"scope fields in definitions",
			"a = $siga - 96\nf(x, y) = 3 * x^2 + y + 5\nf(a, 6) == 1080011 and not equalText($sigb, \"se\")",
			true,
		},
		{"zero argument function", "f() = 41\nf() + 1 == 42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(context.Background(), tt.condition, "regular")
			if err != nil {
				t.Fatalf("Evaluate(%q) error: %v", tt.condition, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.condition, got, tt.want)
			}
		})
	}
}

func TestEvaluateFailures(t *testing.T) {
	eval := NewEvaluator(testSource(), 0)

	notBoolean := []struct {
		name      string
		condition string
	}{
		{"number result", "1 + 2 * 3 / 4"},
		{"assignment result", "a = 5"},
		{"function definition result", "f(x) = x + 1"},
		{"empty condition", ""},
		{"whitespace condition", "        "},
		{"multiline whitespace", "    \n     ;\n\n;\n    "},
		{"trailing number", "mojevar = 1 + 2\nmojevar == 3\n1 + 2"},
	}
	for _, tt := range notBoolean {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.Evaluate(context.Background(), tt.condition, "regular")
			if !errors.Is(err, ErrNotBoolean) {
				t.Errorf("Evaluate(%q) error = %v, want ErrNotBoolean", tt.condition, err)
			}
		})
	}

	failures := []struct {
		name      string
		condition string
		msgPart   string
	}{
		{"syntax error", "1 + 2 == 3 +", "unexpected"},
		{"unknown function", "pseudofunc(123, 45) == 42", "pseudofunc"},
		{"avg on string signal", `avg("sigb", 6) == 1`, "signal in avg function is not numerical"},
		{"vari on string signal", `vari("sigb", 5) == 1`, "signal in vari function is not numerical"},
		{"wrong arity", "f(x) = x + 1\nf(1, 2) == 2", "expects 1 arguments"},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eval.Evaluate(context.Background(), tt.condition, "regular")
			var evalErr *EvalError
			if !errors.As(err, &evalErr) {
				t.Fatalf("Evaluate(%q) error = %v, want *EvalError", tt.condition, err)
			}
			if !strings.Contains(strings.ToLower(evalErr.Error()), strings.ToLower(tt.msgPart)) {
				t.Errorf("Evaluate(%q) error = %q, want substring %q", tt.condition, evalErr.Error(), tt.msgPart)
			}
		})
	}
}

func TestEvaluateFetchFailure(t *testing.T) {
	src := testSource()
	src.err = fmt.Errorf("connection refused")
	eval := NewEvaluator(src, 0)

	_, err := eval.Evaluate(context.Background(), "true", "regular")
	var evalErr *EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("error = %v, want *EvalError", err)
	}
	if !strings.Contains(evalErr.Error(), "connection refused") {
		t.Errorf("error = %q, want the fetch failure message", evalErr.Error())
	}
}

func TestEvaluateWindowSize(t *testing.T) {
	src := testSource()

	eval := NewEvaluator(src, 0)
	if _, err := eval.Evaluate(context.Background(), "true", "regular"); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if src.lastLimit != DefaultWindowSize {
		t.Errorf("default window fetch limit = %d, want %d", src.lastLimit, DefaultWindowSize)
	}

	eval = NewEvaluator(src, 25)
	if _, err := eval.Evaluate(context.Background(), "true", "regular"); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if src.lastLimit != 25 {
		t.Errorf("window fetch limit = %d, want 25", src.lastLimit)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements(" a = 1 ;\n b = 2\n\n;; c ")
	want := []string{"a = 1", "b = 2", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitStatements = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseDefinition(t *testing.T) {
	tests := []struct {
		stmt     string
		isDef    bool
		name     string
		nParams  int
		body     string
	}{
		{"a = 5", true, "a", -1, "5"},
		{"f(x) = x + 1", true, "f", 1, "x + 1"},
		{"fr(x, y) = x + y", true, "fr", 2, "x + y"},
		{"f() = 1", true, "f", 0, "1"},
		{"a == 5", false, "", 0, ""},
		{"a <= 5", false, "", 0, ""},
		{"a >= 5", false, "", 0, ""},
		{"a != 5", false, "", 0, ""},
		{`equalText("a=b", $sigb)`, false, "", 0, ""},
		{"$siga == 1", false, "", 0, ""},
		{"1 + 2", false, "", 0, ""},
	}
	for _, tt := range tests {
		name, params, body, ok := parseDefinition(tt.stmt)
		if ok != tt.isDef {
			t.Errorf("parseDefinition(%q) ok = %v, want %v", tt.stmt, ok, tt.isDef)
			continue
		}
		if !ok {
			continue
		}
		if name != tt.name || body != tt.body {
			t.Errorf("parseDefinition(%q) = (%q, %q), want (%q, %q)", tt.stmt, name, body, tt.name, tt.body)
		}
		if tt.nParams < 0 {
			if params != nil {
				t.Errorf("parseDefinition(%q) params = %v, want variable definition", tt.stmt, params)
			}
		} else if len(params) != tt.nParams {
			t.Errorf("parseDefinition(%q) params = %v, want %d", tt.stmt, params, tt.nParams)
		}
	}
}
