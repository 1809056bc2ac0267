package pdftext

import "testing"

func TestTextFromContentStream(t *testing.T) {
	testCases := []struct {
		name   string
		stream string
		want   string
	}{
		{
			name:   "lines via Td",
			stream: "BT /F1 12 Tf 72 720 Td (Acme Inc) Tj 0 -14 Td (Taro Yamada) Tj ET",
			want:   "Acme Inc\nTaro Yamada",
		},
		{
			name:   "horizontal Td joins with a space",
			stream: "BT (Tel) Tj 40 0 Td (03-1234-5678) Tj ET",
			want:   "Tel 03-1234-5678",
		},
		{
			name:   "T star and quote",
			stream: "BT (one) Tj T* (two) Tj (three) ' ET",
			want:   "one\ntwo\nthree",
		},
		{
			name:   "TJ with kerning",
			stream: "BT [(Ac) 20 (me) -300 (Inc)] TJ ET",
			want:   "Acme Inc",
		},
		{
			name:   "escapes and nested parentheses",
			stream: `BT (a\(b\) \101 (c)) Tj ET`,
			want:   "a(b) A (c)",
		},
		{
			name:   "hex strings",
			stream: "BT <48656c6c6f> Tj T* <FEFF0041004200> Tj ET",
			want:   "Hello\nAB",
		},
		{
			name:   "separate text objects",
			stream: "BT (first) Tj ET\nq 1 0 0 1 0 0 cm Q\nBT (second) Tj ET",
			want:   "first\nsecond",
		},
		{
			name:   "comments and graphics only",
			stream: "% comment (not text) Tj\n0 0 m 10 10 l S",
			want:   "",
		},
		{
			name:   "dictionary operands",
			stream: "/Span <</MCID 0>> BDC BT (x) Tj ET EMC",
			want:   "x",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TextFromContentStream([]byte(tc.stream))
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractInvalidDocument(t *testing.T) {
	if _, err := Extract(nil); err == nil {
		t.Error("Expected error for empty document")
	}
	if _, err := Extract([]byte("not a pdf")); err == nil {
		t.Error("Expected error for garbage input")
	}
	if _, err := ReadInfo([]byte("not a pdf")); err == nil {
		t.Error("Expected error for garbage input")
	}
}

func TestInfoMap(t *testing.T) {
	m := Info{PageCount: 2, Width: 252, Height: 144, AspectRatio: 1.75}.Map()
	if m["page_count"] != 2 || m["aspect_ratio"] != 1.75 {
		t.Errorf("unexpected map %v", m)
	}
}
