// Package loot разыгрывает улов по таблице весов локации.
//
// Алгоритм: веса рыб локации образуют накопительную таблицу; выбираем
// равномерное целое число в [1, сумма весов] и идём по таблице, пока
// накопленная сумма не станет ≥ выпавшего числа (верхняя граница включительно).
//
// Пример для озера (веса 50/30/15/5):
//
//	1..50   → Окунь
//	51..80  → Карась
//	81..95  → Щука
//	96..100 → Сом
package loot

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"serotonyl.ru/fishing-bot/internal/features/catalog"
)

// Catch — результат одного заброса.
type Catch struct {
	Location  string // ID локации, по которой шёл розыгрыш
	Fish      string
	BasePrice int64
	Quantity  int64
}

// Value — примерная стоимость улова (базовая цена × количество).
func (c Catch) Value() int64 {
	return c.BasePrice * c.Quantity
}

// Resolver разыгрывает улов. Безопасен для параллельного использования.
type Resolver struct {
	catalog *catalog.Catalog

	mu  sync.Mutex // rand.Rand не потокобезопасен
	rng *rand.Rand
}

// NewResolver создаёт резолвер с источником случайности, засеянным из crypto/rand.
func NewResolver(c *catalog.Catalog) *Resolver {
	return NewResolverWithSource(c, rand.NewPCG(cryptoSeed(), cryptoSeed()))
}

// NewResolverWithSource создаёт резолвер с заданным источником (для тестов
// с фиксированным сидом).
func NewResolverWithSource(c *catalog.Catalog, src rand.Source) *Resolver {
	return &Resolver{catalog: c, rng: rand.New(src)}
}

// Draw разыгрывает рыбу в локации. Неизвестная локация заменяется локацией
// по умолчанию — заброс всегда можно разрешить. Количество = 1 + bonus.
func (r *Resolver) Draw(locationID string, bonus int) Catch {
	loc := r.catalog.LocationOrDefault(locationID)
	if bonus < 0 {
		bonus = 0
	}

	total := loc.TotalWeight()
	r.mu.Lock()
	roll := r.rng.IntN(total) + 1
	r.mu.Unlock()

	fish := Pick(loc.Fish, roll)
	return Catch{
		Location:  loc.ID,
		Fish:      fish.Name,
		BasePrice: fish.Price,
		Quantity:  int64(1 + bonus),
	}
}

// Pick возвращает запись, в накопительный диапазон которой попадает roll ∈ [1, сумма весов].
func Pick(table []catalog.Fish, roll int) catalog.Fish {
	acc := 0
	for _, f := range table {
		acc += f.Weight
		if acc >= roll {
			return f
		}
	}
	// roll вне диапазона — последняя запись
	return table[len(table)-1]
}

func cryptoSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.Uint64()
	}
	return binary.LittleEndian.Uint64(b[:])
}
