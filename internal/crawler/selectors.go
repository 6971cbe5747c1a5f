package crawler

import (
	"fmt"
	"strings"
)

// XPath selectors for the nongnet wholesale price sheet. The page is a Qlik
// mashup whose DOM ids are generated, so controls are addressed through the
// visible labels and titles next to them.
const (
	selPageReady    = "//b[contains(text(), '시작일')]"
	selItemSelect   = "//div[contains(@class, 'inlinelabeldiv') and contains(text(), '품목')]/ancestor::label/following-sibling::div//select"
	selSearchInput  = "//div[contains(@class, 'qv-listbox-popover')]//input"
	selFilterOK     = "//button[@title='선택 확인']"
	selQueryConfirm = "//button[.//span[text()='확인']]"
	selExportButton = "//*[@id='exportBtn']"
)

// xpathLiteral quotes s for use inside an XPath expression. XPath 1.0 has no
// escape sequences, so strings holding both quote kinds are built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// dateSelect addresses the nth (1-based) <select> following a date label:
// 1 year, 2 month, 3 day.
func dateSelect(label string, n int) string {
	return fmt.Sprintf("//b[contains(text(), %s)]/following::select[%d]", xpathLiteral(label), n)
}

func filterHeader(title string) string {
	return fmt.Sprintf("//span[@title=%s]/ancestor::div[contains(@class, 'qv-collapsed-listbox')]", xpathLiteral(title))
}

func filterOption(text string) string {
	return fmt.Sprintf("//div[contains(@class, 'qv-listbox-popover')]//span[@title=%s]", xpathLiteral(text))
}
