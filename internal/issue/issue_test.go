// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	// Verify all IDs are unique and sequential
	ids := []Id{
		RequirementsFileNotFoundId,
		RequirementParseErrorId,
		ModuleNotFoundId,
		InterpreterNotFoundId,
		ResolverNotFoundId,
		ResolutionFailedId,
		VersionConflictId,
		CacheCorruptionId,
		InstallFailedId,
		ConfigLoadFailedId,
		HookFailedId,
	}

	seen := make(map[Id]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if RequirementsFileNotFoundId != 1 {
		t.Errorf("RequirementsFileNotFoundId = %d, want 1", RequirementsFileNotFoundId)
	}
}

func TestIssue_Id(t *testing.T) {
	issue := Get(RequirementsFileNotFoundId)
	if issue == nil {
		t.Fatal("Get(RequirementsFileNotFoundId) returned nil")
	}

	if issue.Id() != RequirementsFileNotFoundId {
		t.Errorf("issue.Id() = %d, want %d", issue.Id(), RequirementsFileNotFoundId)
	}
}

func TestIssue_MarkdownMsg(t *testing.T) {
	issue := Get(RequirementsFileNotFoundId)
	if issue == nil {
		t.Fatal("Get(RequirementsFileNotFoundId) returned nil")
	}

	msg := issue.MarkdownMsg()
	if msg == "" {
		t.Error("MarkdownMsg() returned empty string")
	}

	// Verify it contains expected content
	if !strings.Contains(string(msg), "No requirements files found") {
		t.Error("MarkdownMsg() should contain 'No requirements files found'")
	}
}

func TestIssue_DocLinks(t *testing.T) {
	issue := Get(RequirementsFileNotFoundId)
	if issue == nil {
		t.Fatal("Get(RequirementsFileNotFoundId) returned nil")
	}

	// DocLinks returns a clone of the links
	links := issue.DocLinks()
	if links == nil {
		// nil is acceptable if no doc links are set
		return
	}

	// Modifying the returned slice should not affect the original
	if len(links) > 0 {
		original := links[0]
		links[0] = "modified"
		newLinks := issue.DocLinks()
		if len(newLinks) > 0 && newLinks[0] != original {
			t.Error("DocLinks() should return a clone")
		}
	}
}

func TestIssue_ExtLinks(t *testing.T) {
	// RequirementParseErrorId carries an upstream packaging.python.org link
	issue := Get(RequirementParseErrorId)
	if issue == nil {
		t.Fatal("Get(RequirementParseErrorId) returned nil")
	}

	links := issue.ExtLinks()
	if len(links) == 0 {
		t.Fatal("ExtLinks() should not be empty for RequirementParseErrorId")
	}

	// Modifying the returned slice should not affect the original
	original := links[0]
	links[0] = "modified"
	newLinks := issue.ExtLinks()
	if newLinks[0] != original {
		t.Error("ExtLinks() should return a clone")
	}
}

func TestIssue_Render(t *testing.T) {
	// Mock the render function for testing
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		// Simple mock that just returns the input
		return in, nil
	}

	issue := Get(ResolutionFailedId)
	if issue == nil {
		t.Fatal("Get(ResolutionFailedId) returned nil")
	}

	rendered, err := issue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if rendered == "" {
		t.Error("Render() returned empty string")
	}

	// The rendered output should contain the content
	if !strings.Contains(rendered, "resolver") {
		t.Error("Render() output should contain 'resolver'")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{RequirementsFileNotFoundId, false, "No requirements files found"},
		{RequirementParseErrorId, false, "Failed to parse requirement"},
		{ModuleNotFoundId, false, "Module not found"},
		{InterpreterNotFoundId, false, "Python interpreter not found"},
		{ResolverNotFoundId, false, "Resolver command not found"},
		{ResolutionFailedId, false, "Dependency resolution failed"},
		{VersionConflictId, false, "Version conflict"},
		{CacheCorruptionId, false, "Cache entry is corrupted"},
		{InstallFailedId, false, "Package install failed"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{HookFailedId, false, "Hook script failed"},
		{Id(9999), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}

			if tt.contains != "" && !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()

	if len(issues) == 0 {
		t.Fatal("Values() returned empty slice")
	}

	// Count expected number of issues
	expectedCount := 11 // Based on the number of predefined issues

	if len(issues) != expectedCount {
		t.Errorf("Values() returned %d issues, want %d", len(issues), expectedCount)
	}

	// Verify all issues have valid IDs
	for _, issue := range issues {
		if issue.Id() == 0 {
			t.Error("found issue with ID 0")
		}
	}
}

func TestIssue_Render_WithLinks(t *testing.T) {
	// Mock the render function for testing
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	// Create a test issue with links to verify the rendering logic
	testIssue := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue\n\nThis is a test.",
		docLinks: []HttpLink{"https://docs.example.com"},
		extLinks: []HttpLink{"https://external.example.com"},
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	// The rendered output should include the "See also" section
	if !strings.Contains(rendered, "See also") {
		t.Error("Render() with links should contain 'See also'")
	}
}

func TestIssue_Render_NoLinks(t *testing.T) {
	// Mock the render function for testing
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	// Create a test issue without links
	testIssue := &Issue{
		id:    Id(9998),
		mdMsg: "# Test Issue\n\nNo links here.",
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if strings.Contains(rendered, "See also") {
		t.Error("Render() without links should not contain 'See also'")
	}
}
