package parser

import (
	"errors"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	data := []byte(`---
title: Hello World
tags:
  - project
  - notes
aliases:
  - hw
---

# Heading

Body text with a #inline-tag.
`)
	res, err := Parse("hello.md", data)
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Hello World" {
		t.Errorf("title = %q", res.Title)
	}
	if len(res.Tags) != 3 {
		t.Errorf("tags = %v", res.Tags)
	}
	if len(res.Aliases) != 1 || res.Aliases[0] != "hw" {
		t.Errorf("aliases = %v", res.Aliases)
	}
	if res.Frontmatter == nil {
		t.Error("frontmatter missing")
	}
}

func TestParse_TitleFromH1(t *testing.T) {
	res, err := Parse("n.md", []byte("# First Heading\n\ntext"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "First Heading" {
		t.Errorf("title = %q", res.Title)
	}
}

func TestParse_MalformedFrontmatterIsParseError(t *testing.T) {
	data := []byte("---\ntitle: [unclosed\n  bad: : yaml\n---\nbody")
	_, err := Parse("bad.md", data)
	if err == nil {
		t.Fatal("expected error")
	}
	var perr *apperr.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if perr.Path != "bad.md" {
		t.Errorf("path = %q", perr.Path)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	res, err := Parse("n.md", []byte("just text"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Body != "just text" {
		t.Errorf("body = %q", res.Body)
	}
}

func TestExtractLinks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []models.LinkRef
	}{
		{
			name: "plain wikilink",
			body: "see [[other note]]",
			want: []models.LinkRef{{Target: "other note"}},
		},
		{
			name: "alias",
			body: "see [[target|display text]]",
			want: []models.LinkRef{{Target: "target", Display: "display text"}},
		},
		{
			name: "heading subpath",
			body: "see [[note#Section One]]",
			want: []models.LinkRef{{Target: "note", Section: "Section One"}},
		},
		{
			name: "block subpath",
			body: "see [[note#^block1]]",
			want: []models.LinkRef{{Target: "note", Block: "block1"}},
		},
		{
			name: "embed",
			body: "![[image.png]]",
			want: []models.LinkRef{{Target: "image.png"}},
		},
		{
			name: "markdown internal link",
			body: "[label](folder/note.md)",
			want: []models.LinkRef{{Target: "folder/note.md", Display: "label"}},
		},
		{
			name: "markdown percent-encoded",
			body: "[x](my%20note.md)",
			want: []models.LinkRef{{Target: "my note.md", Display: "x"}},
		},
		{
			name: "external url skipped",
			body: "[site](https://example.com) and [m](mailto:a@b.c)",
			want: nil,
		},
		{
			name: "duplicate references kept in order",
			body: "[[a]] then [[b]] then [[a]]",
			want: []models.LinkRef{{Target: "a"}, {Target: "b"}, {Target: "a"}},
		},
		{
			name: "empty target dropped",
			body: "[[]] and [[ ]]",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractLinks(tt.body)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("link %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractLinks_Deterministic(t *testing.T) {
	body := "[[a|x]] [md](b.md) [[c#h]] #tag"
	first := extractLinks(body)
	for i := 0; i < 10; i++ {
		again := extractLinks(body)
		if len(again) != len(first) {
			t.Fatal("non-deterministic extraction")
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatal("non-deterministic extraction")
			}
		}
	}
}

func TestExtractTags_FrontmatterString(t *testing.T) {
	res, err := Parse("n.md", []byte("---\ntags: one, two\n---\nbody"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Tags) != 2 || res.Tags[0] != "one" || res.Tags[1] != "two" {
		t.Errorf("tags = %v", res.Tags)
	}
}
