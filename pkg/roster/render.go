// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package roster

import "strings"

// takenMark is appended to a roster line whose role is occupied.
const takenMark = "✅"

// pendingMark may appear on lines from older roster revisions; it is
// stripped before re-rendering.
const pendingMark = "🕒"

// headerMarkers identify decorative or instructional lines that are passed
// through untouched when re-rendering a roster message.
var headerMarkers = []string{"ᵎ", "СПИСОК", "Если персонажа"}

func isHeader(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	for _, marker := range headerMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// RoleName extracts the role name from a roster line, dropping any marks.
func RoleName(line string) string {
	name := strings.ReplaceAll(line, takenMark, "")
	name = strings.ReplaceAll(name, pendingMark, "")
	return strings.TrimSpace(name)
}

// Render re-renders a saved roster message against current occupancy.
//
// Lines naming an occupied role gain the taken mark, lines naming a free
// role are reduced to the bare name, and anything else (headers, blank
// lines, roles missing from occupancy) passes through unchanged. Rendering
// is idempotent: feeding the output back in with the same occupancy yields
// identical text.
func Render(text string, occupied map[string]bool) string {
	lines := strings.Split(text, "\n")
	updated := make([]string, 0, len(lines))
	for _, line := range lines {
		if isHeader(line) {
			updated = append(updated, line)
			continue
		}
		name := RoleName(line)
		if taken, known := occupied[name]; !known {
			updated = append(updated, line)
		} else if taken {
			updated = append(updated, name+" "+takenMark)
		} else {
			updated = append(updated, name)
		}
	}
	return strings.Join(updated, "\n")
}
