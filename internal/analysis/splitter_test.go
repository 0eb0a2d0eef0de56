package analysis

import (
	"strings"
	"testing"
)

func TestSplitSectionsOnHeaders(t *testing.T) {
	code := "# ===== Demographics Overview =====\n" +
		"df.describe()\n" +
		"\n" +
		"# Survival Analysis\n" +
		"km = fit_kaplan_meier(df)\n"

	sections := splitSections(code)
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}

	if sections[0].Title != "Demographics Overview" {
		t.Errorf("section 0 title = %q, want banner padding stripped", sections[0].Title)
	}
	if !strings.Contains(sections[0].Code, "df.describe()") {
		t.Errorf("section 0 code = %q, want describe call", sections[0].Code)
	}
	if sections[1].Title != "Survival Analysis" {
		t.Errorf("section 1 title = %q, want Survival Analysis", sections[1].Title)
	}
}

func TestSplitSectionsWithoutHeaders(t *testing.T) {
	sections := splitSections("df.describe()")
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(sections))
	}
	if sections[0].Title != "Clinical Data Overview" {
		t.Errorf("title = %q, want the classifier's summary title", sections[0].Title)
	}
}

func TestSplitSectionsShortCommentStaysInline(t *testing.T) {
	sections := splitSections("# x\ndf.head()")
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want 1", len(sections))
	}
	if !strings.Contains(sections[0].Code, "# x") {
		t.Errorf("short comment should remain part of the code, got %q", sections[0].Code)
	}
}

func TestSplitSectionsHeaderOnly(t *testing.T) {
	code := "# A Lonely Header"
	sections := splitSections(code)
	if len(sections) != 1 {
		t.Fatalf("sections = %d, want fallback single section", len(sections))
	}
	if sections[0].Code != code {
		t.Errorf("fallback section code = %q, want full input", sections[0].Code)
	}
}
