package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtract_OrderPreservedNoDedup(t *testing.T) {
	m := Extract("see #a #a https://x.com")
	if !reflect.DeepEqual(m.Tags, []string{"a", "a"}) {
		t.Errorf("tags = %v, want [a a]", m.Tags)
	}
	if !reflect.DeepEqual(m.URLs, []string{"https://x.com"}) {
		t.Errorf("urls = %v, want [https://x.com]", m.URLs)
	}
}

func TestExtract_MessageWithNewsTag(t *testing.T) {
	m := Extract("Hello #news\nmore text https://example.com")
	if m.Title != "Hello #news" {
		t.Errorf("title = %q", m.Title)
	}
	if !reflect.DeepEqual(m.Tags, []string{"news"}) {
		t.Errorf("tags = %v", m.Tags)
	}
	if !reflect.DeepEqual(m.URLs, []string{"https://example.com"}) {
		t.Errorf("urls = %v", m.URLs)
	}
}

func TestTitle_SkipsBlankLines(t *testing.T) {
	if got := Title("\n   \n  First real line  \nsecond"); got != "First real line" {
		t.Errorf("title = %q", got)
	}
}

func TestTitle_Fallback(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t\n"} {
		if got := Title(in); got != FallbackTitle {
			t.Errorf("Title(%q) = %q, want fallback", in, got)
		}
	}
}

func TestTitle_TruncatedTo120(t *testing.T) {
	long := strings.Repeat("x", 300)
	if got := Title(long); len([]rune(got)) != MaxTitleLen {
		t.Errorf("len = %d, want %d", len([]rune(got)), MaxTitleLen)
	}
	cyr := strings.Repeat("ж", 130)
	if got := Title(cyr); len([]rune(got)) != MaxTitleLen {
		t.Errorf("cyrillic len = %d, want %d", len([]rune(got)), MaxTitleLen)
	}
}

func TestTags_CyrillicAndSymbols(t *testing.T) {
	got := Tags("#новости #go_lang #a-b #123 # empty #!")
	want := []string{"новости", "go_lang", "a-b", "123"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestURLs_HTTPAndHTTPS(t *testing.T) {
	got := URLs("a http://one.test/x b https://two.test?q=1 ftp://no.test")
	want := []string{"http://one.test/x", "https://two.test?q=1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("urls = %v, want %v", got, want)
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	m := Extract("")
	if m.Title != FallbackTitle {
		t.Errorf("title = %q", m.Title)
	}
	if m.URLs == nil || len(m.URLs) != 0 {
		t.Errorf("urls = %#v, want empty non-nil", m.URLs)
	}
	if m.Tags == nil || len(m.Tags) != 0 {
		t.Errorf("tags = %#v, want empty non-nil", m.Tags)
	}
}
