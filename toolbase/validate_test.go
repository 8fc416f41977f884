package toolbase

import (
	"errors"
	"reflect"
	"testing"
)

func TestContainsShellMetacharacter(t *testing.T) {
	cases := []struct {
		s    string
		want bool
	}{
		{"--rate 500 -p 80,443", false},
		{"foo; rm -rf /", true},
		{"foo && bar", true},
		{"foo | bar", true},
		{"foo`bar`", true},
		{"$HOME", true},
		{"a > b", true},
		{"a < b", true},
		{"line1\nline2", true},
		{"line1\rline2", true},
		{"clean-token_1.2:3/4=5+6,7-8@9%10", false},
	}
	for _, c := range cases {
		if got := ContainsShellMetacharacter(c.s); got != c.want {
			t.Errorf("ContainsShellMetacharacter(%q) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "--rate 500 -p 80,443", []string{"--rate", "500", "-p", "80,443"}},
		{"single quoted", "'hello world' foo", []string{"hello world", "foo"}},
		{"double quoted", `"hello world" foo`, []string{"hello world", "foo"}},
		{"escaped space outside quotes", `foo\ bar`, []string{"foo bar"}},
		{"double quote escape", `"a\"b"`, []string{`a"b`}},
		{"empty", "", nil},
		{"only whitespace", "   ", nil},
		{"multiple spaces collapse", "a   b", []string{"a", "b"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Tokenize(c.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", c.in, got, c.want)
			}
		})
	}

	t.Run("unterminated single quote", func(t *testing.T) {
		if _, err := Tokenize("'unterminated"); !errors.Is(err, ErrUnterminatedQuote) {
			t.Errorf("err = %v, want ErrUnterminatedQuote", err)
		}
	})

	t.Run("unterminated double quote", func(t *testing.T) {
		if _, err := Tokenize(`"unterminated`); !errors.Is(err, ErrUnterminatedQuote) {
			t.Errorf("err = %v, want ErrUnterminatedQuote", err)
		}
	})
}

func TestValidateArgsShape(t *testing.T) {
	allowedFlags := []string{"--rate", "-p", "--wait"}
	valueFlags := []string{"--rate", "-p", "--wait"}
	extraTokens := []string{"safe"}

	t.Run("valid args pass and tokenize", func(t *testing.T) {
		tokens, err := ValidateArgsShape("--rate 500 -p 80,443", 2048, allowedFlags, valueFlags, extraTokens)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"--rate", "500", "-p", "80,443"}
		if !reflect.DeepEqual(tokens, want) {
			t.Errorf("tokens = %#v, want %#v", tokens, want)
		}
	})

	t.Run("too long rejected", func(t *testing.T) {
		long := make([]byte, 10)
		for i := range long {
			long[i] = 'a'
		}
		if _, err := ValidateArgsShape(string(long), 5, allowedFlags, valueFlags, extraTokens); !errors.Is(err, ErrArgsTooLong) {
			t.Errorf("err = %v, want ErrArgsTooLong", err)
		}
	})

	t.Run("shell metacharacter rejected", func(t *testing.T) {
		if _, err := ValidateArgsShape("--rate 500; rm -rf /", 2048, allowedFlags, valueFlags, extraTokens); !errors.Is(err, ErrShellMetacharacter) {
			t.Errorf("err = %v, want ErrShellMetacharacter", err)
		}
	})

	t.Run("disallowed flag rejected", func(t *testing.T) {
		if _, err := ValidateArgsShape("--evil", 2048, allowedFlags, valueFlags, extraTokens); !errors.Is(err, ErrDisallowedFlag) {
			t.Errorf("err = %v, want ErrDisallowedFlag", err)
		}
	})

	t.Run("disallowed non-flag token rejected", func(t *testing.T) {
		if _, err := ValidateArgsShape("notaflag!!", 2048, allowedFlags, valueFlags, extraTokens); !errors.Is(err, ErrDisallowedToken) {
			t.Errorf("err = %v, want ErrDisallowedToken", err)
		}
	})

	t.Run("extra allowed token passes", func(t *testing.T) {
		if _, err := ValidateArgsShape("safe", 2048, allowedFlags, valueFlags, extraTokens); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("flag value consumed without re-matching safe pattern requirement", func(t *testing.T) {
		tokens, err := ValidateArgsShape("-p 80,443,1-1024", 2048, allowedFlags, valueFlags, extraTokens)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"-p", "80,443,1-1024"}
		if !reflect.DeepEqual(tokens, want) {
			t.Errorf("tokens = %#v, want %#v", tokens, want)
		}
	})
}

func TestContainsFlag(t *testing.T) {
	tokens := []string{"--rate", "500", "-p80"}
	if !ContainsFlag(tokens, "--rate") {
		t.Error("expected --rate to be found")
	}
	if !ContainsFlag(tokens, "-p") {
		t.Error("expected -p to be found via prefix match on -p80")
	}
	if ContainsFlag(tokens, "--wait") {
		t.Error("did not expect --wait to be found")
	}
}
