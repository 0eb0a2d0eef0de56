package analysis

import "strings"

type codeSection struct {
	Code  string
	Title string
}

// splitSections breaks generated code at comment headers. A comment longer
// than three characters closes the running section and titles the next one,
// with "=" banner padding stripped. Sections with no header of their own get
// the classifier's automatic title.
func splitSections(code string) []codeSection {
	var sections []codeSection
	var current []string
	currentTitle := "Analysis"

	flush := func() {
		if len(current) == 0 {
			return
		}
		sectionCode := strings.Join(current, "\n")
		current = nil
		if strings.TrimSpace(sectionCode) == "" {
			return
		}
		title := currentTitle
		if title == "Analysis" {
			_, title = ClassifySection(sectionCode)
		}
		sections = append(sections, codeSection{Code: sectionCode, Title: title})
	}

	for _, line := range strings.Split(code, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "#") && len(stripped) > 3 {
			flush()
			currentTitle = strings.TrimSpace(stripped[1:])
			if strings.HasPrefix(currentTitle, "=") {
				currentTitle = strings.TrimSpace(strings.Trim(currentTitle, "="))
			}
			continue
		}
		current = append(current, line)
	}
	flush()

	if len(sections) == 0 {
		_, title := ClassifySection(code)
		sections = append(sections, codeSection{Code: code, Title: title})
	}
	return sections
}
