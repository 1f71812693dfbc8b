// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

// Package roster describes the character role registry shared by both
// supported games and the rendering of pinned roster messages.
package roster

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Game distinguishes the two role-play settings served by the community.
type Game string

const (
	GameGenshin Game = "genshin"
	GameHSR     Game = "hsr"
)

// Games lists all supported games.
var Games = []Game{GameGenshin, GameHSR}

// Region is a character's home region. Values are the Russian display names
// used verbatim in roster messages.
type Region string

// Genshin Impact regions.
const (
	Mondstadt    Region = "Мондштадт"
	Liyue        Region = "Ли Юэ"
	Inazuma      Region = "Инадзума"
	Sumeru       Region = "Сумеру"
	Fontaine     Region = "Фонтейн"
	Natlan       Region = "Натлан"
	Snezhnaya    Region = "Снежная"
	Khaenriah    Region = "Каэнри'ах"
	GenshinOther Region = "Другие (Genshin Impact)"
)

// Honkai: Star Rail regions.
const (
	HSRExpress     Region = "Звездный экспресс"
	HSRHerta       Region = "Космическая станция Герта"
	HSRJarilo      Region = "Ярило-VI"
	HSRLuofu       Region = "Лофу Сяньчжоу"
	HSRPenacony    Region = "Пенакония"
	HSRAmphoreus   Region = "Амфореус"
	HSRHunters     Region = "Охотники за Стеллар"
	HSRIPC         Region = "КММ"
	HSRAeons       Region = "Эоны"
	HSRMansion     Region = "Вечногорящий особняк"
	HSRLords       Region = "Лорды Опустошители"
	HSROther       Region = "Прочие (Honkai: Star Rail)"
	HSRFate        Region = "Фейт"
)

var genshinRegions = []Region{
	Mondstadt, Liyue, Inazuma, Sumeru, Fontaine, Natlan, Snezhnaya,
	Khaenriah, GenshinOther,
}

var hsrRegions = []Region{
	HSRExpress, HSRHerta, HSRJarilo, HSRLuofu, HSRPenacony, HSRAmphoreus,
	HSRHunters, HSRIPC, HSRAeons, HSRMansion, HSRLords, HSROther, HSRFate,
}

var regionGame = func() map[Region]Game {
	m := make(map[Region]Game)
	for _, r := range genshinRegions {
		m[r] = GameGenshin
	}
	for _, r := range hsrRegions {
		m[r] = GameHSR
	}
	return m
}()

// Regions returns the regions belonging to the given game, in canonical order.
func Regions(game Game) []Region {
	switch game {
	case GameGenshin:
		return genshinRegions
	case GameHSR:
		return hsrRegions
	}
	return nil
}

// GameFor returns the game a region belongs to.
func GameFor(region Region) (Game, error) {
	game, ok := regionGame[region]
	if !ok {
		return "", errors.Errorf("unknown region %q", region)
	}
	return game, nil
}

// Valid reports whether the region is known.
func (r Region) Valid() bool {
	_, ok := regionGame[r]
	return ok
}

// Def is one role definition in a roster file.
type Def struct {
	Name   string
	Region Region
}

// rosterFile is the YAML shape: game -> region -> role names.
type rosterFile map[Game]map[Region][]string

// ParseDefs decodes YAML role definitions.
//
// File shape:
//
//	genshin:
//	  Мондштадт: [Альбедо, Джинн]
//	hsr:
//	  Звездный экспресс: [Вельт]
func ParseDefs(data []byte) ([]Def, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "decoding roster file")
	}
	var defs []Def
	seen := make(map[string]bool)
	for game, regions := range file {
		if game != GameGenshin && game != GameHSR {
			return nil, errors.Errorf("unknown game %q", game)
		}
		for region, names := range regions {
			owner, err := GameFor(region)
			if err != nil {
				return nil, err
			}
			if owner != game {
				return nil, errors.Errorf("region %q does not belong to game %q", region, game)
			}
			for _, name := range names {
				name = strings.TrimSpace(name)
				if name == "" {
					return nil, errors.Errorf("empty role name under region %q", region)
				}
				if seen[name] {
					return nil, errors.Errorf("duplicate role %q", name)
				}
				seen[name] = true
				defs = append(defs, Def{Name: name, Region: region})
			}
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}
