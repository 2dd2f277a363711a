package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type entry struct {
	Key  string `json:"key" yaml:"key"`
	Size int    `json:"size" yaml:"size"`
}

type entries []entry

func (e entries) Table() *Table {
	t := NewTable("KEY", "SIZE")
	for _, x := range e {
		t.AddRow(x.Key, FormatBytes(int64(x.Size)))
	}
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTableFormatter(t *testing.T) {
	data := entries{{"/std/mod.ts", 2048}, {"/a.js", 10}}

	tests := []struct {
		name      string
		data      any
		noHeaders bool
		want      []string
	}{
		{"tabular", data, false, []string{"KEY          SIZE", "/std/mod.ts  2.0 KiB", "/a.js        10 B"}},
		{"no headers", data, true, []string{"/std/mod.ts  2.0 KiB", "/a.js        10 B"}},
		{"strings", []string{"b", "a"}, false, []string{"b", "a"}},
		{"map", map[string]string{"path": "/x", "backend": "bolt"}, false, []string{"KEY      VALUE", "backend  bolt", "path     /x"}},
		{"empty cell", tableWithRow("A", ""), false, []string{"A", "-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := &TableFormatter{NoHeaders: tt.noHeaders}
			if err := f.Format(&buf, tt.data); err != nil {
				t.Fatal(err)
			}
			got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			for i := range got {
				got[i] = strings.TrimRight(got[i], " ")
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("output =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func tableWithRow(header, cell string) *Table {
	t := NewTable(header)
	t.AddRow(cell)
	return t
}

func TestTableFormatter_FallsBackToYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, entry{Key: "k", Size: 1}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "key: k\nsize: 1\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestJSONAndYAML(t *testing.T) {
	data := []entry{{"/x.ts", 3}}

	var jb bytes.Buffer
	if err := NewFormatter(FormatJSON).Format(&jb, data); err != nil {
		t.Fatal(err)
	}
	var fromJSON []entry
	if err := json.Unmarshal(jb.Bytes(), &fromJSON); err != nil || fromJSON[0] != data[0] {
		t.Errorf("json = %s (%v)", jb.String(), err)
	}

	var yb bytes.Buffer
	if err := NewFormatter(FormatYAML).Format(&yb, data); err != nil {
		t.Fatal(err)
	}
	var fromYAML []entry
	if err := yaml.Unmarshal(yb.Bytes(), &fromYAML); err != nil || fromYAML[0] != data[0] {
		t.Errorf("yaml = %s (%v)", yb.String(), err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:        "0 B",
		1023:     "1023 B",
		1024:     "1.0 KiB",
		1536:     "1.5 KiB",
		32 << 20: "32.0 MiB",
		3 << 29:  "1.5 GiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
