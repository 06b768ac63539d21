package export

import (
	"encoding/json"
	"errors"
	"testing"
)

func mustParse(t *testing.T, s string) Value {
	t.Helper()
	v, err := ParseJSON([]byte(s))
	if err != nil {
		t.Fatalf("ParseJSON(%q): %v", s, err)
	}
	return v
}

func TestToCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "array with comma in value",
			input: `[{"a":1,"b":"x,y"}]`,
			want:  "a,b\n1,\"x,y\"\n",
		},
		{
			name:  "object with null",
			input: `{"a":1,"b":null}`,
			want:  "a,b\n1,\n",
		},
		{
			name:  "heterogeneous keys union in first-seen order",
			input: `[{"a":1},{"b":2,"a":3},{"c":true}]`,
			want:  "a,b,c\n1,,\n3,2,\n,,true\n",
		},
		{
			name:  "quotes doubled",
			input: `[{"q":"say \"hi\""}]`,
			want:  "q\n\"say \"\"hi\"\"\"\n",
		},
		{
			name:  "newline and carriage return quoted",
			input: `[{"n":"a\nb","r":"c\rd"}]`,
			want:  "n,r\n\"a\nb\",\"c\rd\"\n",
		},
		{
			name:  "leading space left unquoted",
			input: `[{"s":" padded"}]`,
			want:  "s\n padded\n",
		},
		{
			name:  "nested values as compact json",
			input: `[{"a":{"x":[1, 2]},"b":"<b>"}]`,
			want:  "a,b\n\"{\"\"x\"\":[1,2]}\",<b>\n",
		},
		{
			name:  "number literal preserved",
			input: `[{"n":1.50,"e":1e3,"big":12345678901234567890}]`,
			want:  "n,e,big\n1.50,1e3,12345678901234567890\n",
		},
		{
			name:  "object keys keep document order",
			input: `{"z":1,"a":2,"m":3}`,
			want:  "z,a,m\n1,2,3\n",
		},
		{
			name:  "scalar number",
			input: `42`,
			want:  "value\n42\n",
		},
		{
			name:  "scalar string needing quotes",
			input: `"a,b"`,
			want:  "value\n\"a,b\"\n",
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  "value\n",
		},
		{
			name:  "non-object elements skipped",
			input: `[1,{"a":"x"},[2]]`,
			want:  "a\nx\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToCSV(mustParse(t, tt.input))
			if err != nil {
				t.Fatalf("ToCSV() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ToCSV() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToCSV_Failures(t *testing.T) {
	tests := []struct {
		name string
		tree Value
	}{
		{"empty object", mustParse(t, `{}`)},
		{"array of scalars", mustParse(t, `[10,20,30]`)},
		{"array of mixed non-objects", mustParse(t, `[1,"two",null,[3]]`)},
		{"null document", mustParse(t, `null`)},
		{"foreign value", []Value{&Object{Keys: []string{"a"}, Values: map[string]Value{"a": 3.5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToCSV(tt.tree)
			if !errors.Is(err, ErrConversionFailed) {
				t.Errorf("ToCSV() error = %v, want ErrConversionFailed", err)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"object", `{"a":1}`, false},
		{"with bom", "\ufeff[1,2]", false},
		{"surrounding whitespace", " \n{\"a\":1}\n ", false},
		{"scalar", `true`, false},
		{"trailing data", `{"a":1} x`, true},
		{"two documents", `{} {}`, true},
		{"trailing comma", `{"a":1,}`, true},
		{"missing comma", `[1 2]`, true},
		{"truncated", `{"a":`, true},
		{"empty", ``, true},
		{"bare word", `hello`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseJSON(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseJSON_DuplicateKeys(t *testing.T) {
	obj, ok := mustParse(t, `{"b":1,"a":2,"b":3}`).(*Object)
	if !ok {
		t.Fatal("expected *Object")
	}
	if len(obj.Keys) != 2 || obj.Keys[0] != "b" || obj.Keys[1] != "a" {
		t.Errorf("Keys = %v, want [b a]", obj.Keys)
	}
	if v, _ := obj.Get("b"); v != json.Number("3") {
		t.Errorf("b = %v, want 3", v)
	}
}
