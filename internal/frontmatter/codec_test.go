package frontmatter

import "testing"

func TestEncode(t *testing.T) {
	fields := Fields{}
	fields.Set("remote_id", StringValue("42"))
	fields.Set("status", StringValue("active"))
	fields.Set("due_date", Value{})
	fields.Set("tags", StringList([]string{"a", "b <c>"}))
	fields.Set("estimate", NumberValue(1.5))
	fields.Set("flagged", BoolValue(true))

	got := Encode(fields)
	expected := "---\n" +
		"remote_id: \"42\"\n" +
		"status: \"active\"\n" +
		"due_date: null\n" +
		"tags: [\"a\",\"b <c>\"]\n" +
		"estimate: 1.5\n" +
		"flagged: true\n" +
		"---\n"
	if got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
	if again := Encode(fields); again != got {
		t.Errorf("encode not deterministic: %q vs %q", got, again)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []Fields{
		{},
		{{Key: "remote_id", Value: StringValue("1209")}},
		{
			{Key: "name", Value: StringValue("line one\nline \"two\"")},
			{Key: "count", Value: NumberValue(3)},
			{Key: "negative", Value: NumberValue(-0.25)},
			{Key: "done", Value: BoolValue(false)},
			{Key: "nothing", Value: Value{}},
			{Key: "empty", Value: StringValue("")},
			{Key: "list", Value: ListValue(StringValue("x"), NumberValue(2), BoolValue(true), ListValue())},
			{Key: "colon", Value: StringValue("a: b")},
		},
	}

	for i, fields := range cases {
		got := Decode(Encode(fields))
		if !got.Equal(fields) {
			t.Errorf("case %d: round trip mismatch\nwant %#v\ngot  %#v", i, fields, got)
		}
	}
}

func TestDecode_FallsBackToRawString(t *testing.T) {
	fields := Decode("---\nstatus: active\ndue_date: 2024-03-01\nobj: {\"a\":1}\n---\n")

	if got := fields.String("status"); got != "active" {
		t.Errorf("expected raw %q, got %q", "active", got)
	}
	if got := fields.String("due_date"); got != "2024-03-01" {
		t.Errorf("expected raw %q, got %q", "2024-03-01", got)
	}
	if got := fields.String("obj"); got != `{"a":1}` {
		t.Errorf("expected raw object text, got %q", got)
	}
}

func TestDecode_SkipsMalformedLines(t *testing.T) {
	fields := Decode("no colon here\n: missing key\n   \nkey: \"ok\"\r\n")

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d: %#v", len(fields), fields)
	}
	if got := fields.String("key"); got != "ok" {
		t.Errorf("expected %q, got %q", "ok", got)
	}
}

func TestDecode_Empty(t *testing.T) {
	for _, in := range []string{"", "---\n---\n", "\n\n"} {
		fields := Decode(in)
		if fields == nil || len(fields) != 0 {
			t.Errorf("Decode(%q): expected empty fields, got %#v", in, fields)
		}
	}
}

func TestDecode_DuplicateKeyLastWins(t *testing.T) {
	fields := Decode("a: 1\nb: 2\na: 3\n")

	if keys := fields.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if n, _ := fields.Get("a"); !n.Equal(NumberValue(3)) {
		t.Errorf("expected a=3, got %#v", n)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantBlock string
		wantBody  string
		wantOK    bool
	}{
		{
			name:      "block and body",
			content:   "---\nremote_id: \"1\"\n---\n\n# Task\n",
			wantBlock: "remote_id: \"1\"\n",
			wantBody:  "\n# Task\n",
			wantOK:    true,
		},
		{
			name:      "empty block",
			content:   "---\n---\nbody",
			wantBlock: "",
			wantBody:  "body",
			wantOK:    true,
		},
		{
			name:      "closing delimiter at eof",
			content:   "---\na: 1\n---",
			wantBlock: "a: 1\n",
			wantBody:  "",
			wantOK:    true,
		},
		{
			name:     "crlf",
			content:  "---\r\na: 1\r\n---\r\nbody",
			wantBody: "body",
			wantOK:   true,
		},
		{
			name:     "no opening delimiter",
			content:  "# Just a note\n",
			wantBody: "# Just a note\n",
		},
		{
			name:     "unterminated",
			content:  "---\na: 1\n",
			wantBody: "---\na: 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, body, ok := Split(tt.content)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if tt.wantBlock != "" && block != tt.wantBlock {
				t.Errorf("expected block %q, got %q", tt.wantBlock, block)
			}
			if body != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, body)
			}
		})
	}
}

func TestFieldsSetKeepsPosition(t *testing.T) {
	fields := Fields{}
	fields.Set("a", StringValue("1"))
	fields.Set("b", StringValue("2"))
	fields.Set("a", StringValue("3"))
	fields.Delete("missing")

	if got := Encode(fields); got != "---\na: \"3\"\nb: \"2\"\n---\n" {
		t.Errorf("unexpected encoding %q", got)
	}

	fields.Delete("a")
	if fields.Has("a") || !fields.Has("b") {
		t.Errorf("unexpected fields after delete: %#v", fields)
	}
}

func TestValueText(t *testing.T) {
	v := ListValue(StringValue("x"), NumberValue(2), BoolValue(true), Value{})
	if got := v.Text(); got != "x, 2, true, " {
		t.Errorf("unexpected text %q", got)
	}
}
