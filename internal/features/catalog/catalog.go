// Package catalog хранит статические игровые справочники: удочки, локации
// с таблицами улова и квесты. Справочник загружается один раз при старте
// (встроенный catalog.yaml или файл CATALOG_PATH) и после загрузки не меняется,
// поэтому его можно читать из любых горутин без блокировок.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Виды квестов — какое игровое действие продвигает прогресс.
const (
	QuestKindCatch = "catch" // поймано рыб (штук)
	QuestKindSell  = "sell"  // заработано монет на продаже
	QuestKindBuy   = "buy"   // куплено удочек
)

// Rod — удочка. Bonus добавляется к количеству пойманной рыбы за заброс.
type Rod struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price int64  `yaml:"price"`
	Bonus int    `yaml:"bonus"`
}

// Fish — строка таблицы улова локации.
type Fish struct {
	Name   string `yaml:"name"`
	Price  int64  `yaml:"price"`
	Weight int    `yaml:"weight"`
}

// Location — место рыбалки с упорядоченной таблицей весов.
type Location struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Fish []Fish `yaml:"fish"`
}

// TotalWeight возвращает сумму весов таблицы улова.
func (l Location) TotalWeight() int {
	total := 0
	for _, f := range l.Fish {
		total += f.Weight
	}
	return total
}

// Quest — одноразовое задание с наградой в монетах.
type Quest struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Kind        string `yaml:"kind"`
	Target      int64  `yaml:"target"`
	Reward      int64  `yaml:"reward"`
}

// Progression — параметры опыта и уровней.
type Progression struct {
	XPPerFish  int64 `yaml:"xp_per_fish"`
	XPPerLevel int64 `yaml:"xp_per_level"`
}

// Catalog — все справочники игры.
type Catalog struct {
	DefaultRod       string      `yaml:"default_rod"`
	DefaultLocation  string      `yaml:"default_location"`
	UnknownItemPrice int64       `yaml:"unknown_item_price"`
	Progression      Progression `yaml:"progression"`
	Rods             []Rod       `yaml:"rods"`
	Locations        []Location  `yaml:"locations"`
	Quests           []Quest     `yaml:"quests"`

	rods      map[string]Rod
	locations map[string]Location
	quests    map[string]Quest
}

// Default возвращает встроенный справочник.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		// встроенный файл проверяется тестами
		panic(fmt.Sprintf("встроенный catalog.yaml некорректен: %v", err))
	}
	return c
}

// Load читает справочник из файла. Пустой путь — встроенный справочник.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения справочника: %w", err)
	}
	return Parse(raw)
}

// Parse разбирает YAML и проверяет справочник.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("catalog.yaml: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.rods = make(map[string]Rod, len(c.Rods))
	for _, r := range c.Rods {
		if r.ID == "" || r.Price < 0 || r.Bonus < 0 {
			return fmt.Errorf("некорректная удочка %q", r.ID)
		}
		if _, dup := c.rods[r.ID]; dup {
			return fmt.Errorf("удочка %q описана дважды", r.ID)
		}
		c.rods[r.ID] = r
	}

	c.locations = make(map[string]Location, len(c.Locations))
	for _, l := range c.Locations {
		if l.ID == "" || len(l.Fish) == 0 {
			return fmt.Errorf("некорректная локация %q", l.ID)
		}
		for _, f := range l.Fish {
			if f.Weight <= 0 || f.Price < 0 {
				return fmt.Errorf("локация %q: некорректная рыба %q", l.ID, f.Name)
			}
		}
		if _, dup := c.locations[l.ID]; dup {
			return fmt.Errorf("локация %q описана дважды", l.ID)
		}
		c.locations[l.ID] = l
	}

	c.quests = make(map[string]Quest, len(c.Quests))
	for _, q := range c.Quests {
		if q.ID == "" || q.Target <= 0 || q.Reward < 0 {
			return fmt.Errorf("некорректный квест %q", q.ID)
		}
		switch q.Kind {
		case QuestKindCatch, QuestKindSell, QuestKindBuy:
		default:
			return fmt.Errorf("квест %q: неизвестный вид %q", q.ID, q.Kind)
		}
		if _, dup := c.quests[q.ID]; dup {
			return fmt.Errorf("квест %q описан дважды", q.ID)
		}
		c.quests[q.ID] = q
	}

	if _, ok := c.rods[c.DefaultRod]; !ok {
		return fmt.Errorf("удочка по умолчанию %q не описана", c.DefaultRod)
	}
	if _, ok := c.locations[c.DefaultLocation]; !ok {
		return fmt.Errorf("локация по умолчанию %q не описана", c.DefaultLocation)
	}
	if c.Progression.XPPerLevel <= 0 {
		c.Progression.XPPerLevel = 100
	}
	if c.UnknownItemPrice <= 0 {
		c.UnknownItemPrice = 1
	}
	return nil
}

// Rod ищет удочку по ID.
func (c *Catalog) Rod(id string) (Rod, bool) {
	r, ok := c.rods[id]
	return r, ok
}

// Location ищет локацию по ID.
func (c *Catalog) Location(id string) (Location, bool) {
	l, ok := c.locations[id]
	return l, ok
}

// LocationOrDefault возвращает локацию или локацию по умолчанию, если ID неизвестен.
func (c *Catalog) LocationOrDefault(id string) Location {
	if l, ok := c.locations[id]; ok {
		return l
	}
	return c.locations[c.DefaultLocation]
}

// Quest ищет квест по ключу.
func (c *Catalog) Quest(id string) (Quest, bool) {
	q, ok := c.quests[id]
	return q, ok
}

// QuestsOfKind возвращает квесты указанного вида в порядке описания.
func (c *Catalog) QuestsOfKind(kind string) []Quest {
	var out []Quest
	for _, q := range c.Quests {
		if q.Kind == kind {
			out = append(out, q)
		}
	}
	return out
}

// PriceOf возвращает базовую цену рыбы: первое совпадение по всем локациям
// в порядке описания, иначе UnknownItemPrice.
func (c *Catalog) PriceOf(item string) int64 {
	for _, l := range c.Locations {
		for _, f := range l.Fish {
			if f.Name == item {
				return f.Price
			}
		}
	}
	return c.UnknownItemPrice
}

// RodBonus возвращает бонус удочки; неизвестная удочка даёт 0.
func (c *Catalog) RodBonus(id string) int {
	return c.rods[id].Bonus
}

// LevelFor вычисляет уровень по опыту: 1 + xp / XPPerLevel.
func (c *Catalog) LevelFor(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(1 + xp/c.Progression.XPPerLevel)
}
