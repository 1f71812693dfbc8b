// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package roster

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGameFor(t *testing.T) {
	for _, tc := range []struct {
		region Region
		want   Game
	}{
		{region: Mondstadt, want: GameGenshin},
		{region: GenshinOther, want: GameGenshin},
		{region: HSRExpress, want: GameHSR},
		{region: HSRFate, want: GameHSR},
	} {
		got, err := GameFor(tc.region)
		if err != nil {
			t.Fatalf("GameFor(%q): %v", tc.region, err)
		}
		if got != tc.want {
			t.Fatalf("GameFor(%q): got %q, want %q", tc.region, got, tc.want)
		}
	}
	if _, err := GameFor("Тейват"); err == nil {
		t.Fatal("GameFor: expected error for unknown region")
	}
}

func TestParseDefs(t *testing.T) {
	data := []byte(`
genshin:
  Мондштадт: [Альбедо, Джинн]
  Ли Юэ: [Чжун Ли]
hsr:
  Звездный экспресс: [Вельт]
`)
	defs, err := ParseDefs(data)
	if err != nil {
		t.Fatalf("ParseDefs: %v", err)
	}
	want := []Def{
		{Name: "Альбедо", Region: Mondstadt},
		{Name: "Вельт", Region: HSRExpress},
		{Name: "Джинн", Region: Mondstadt},
		{Name: "Чжун Ли", Region: Liyue},
	}
	if diff := cmp.Diff(want, defs); diff != "" {
		t.Fatalf("ParseDefs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDefsRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{name: "unknown game", data: "zzz:\n  Мондштадт: [Альбедо]\n"},
		{name: "region from wrong game", data: "genshin:\n  Пенакония: [Химеко]\n"},
		{name: "duplicate role", data: "genshin:\n  Мондштадт: [Альбедо, Альбедо]\n"},
		{name: "empty role name", data: "genshin:\n  Мондштадт: ['']\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseDefs([]byte(tc.data)); err == nil {
				t.Fatal("ParseDefs: expected error")
			}
		})
	}
}

func TestRender(t *testing.T) {
	text := "ᵎ СПИСОК ПЕРСОНАЖЕЙ\n" +
		"\n" +
		"Альбедо\n" +
		"Джинн ✅\n" +
		"Чжун Ли 🕒\n" +
		"Неизвестный\n" +
		"Если персонажа нет в списке — напишите администрации"
	occupied := map[string]bool{
		"Альбедо": true,
		"Джинн":   false,
		"Чжун Ли": true,
	}
	want := "ᵎ СПИСОК ПЕРСОНАЖЕЙ\n" +
		"\n" +
		"Альбедо ✅\n" +
		"Джинн\n" +
		"Чжун Ли ✅\n" +
		"Неизвестный\n" +
		"Если персонажа нет в списке — напишите администрации"
	got := Render(text, occupied)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Render mismatch (-want +got):\n%s", diff)
	}
	// Idempotent over its own output.
	if again := Render(got, occupied); again != got {
		t.Fatalf("Render not idempotent:\n%s", again)
	}
}
