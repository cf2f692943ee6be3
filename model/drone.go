package model

import (
	"fmt"
	"strings"
)

// ModelAuto модель определяется по EXIF исходного R-JPEG
const ModelAuto = "AUTO"

// DroneModel описывает тепловизионную камеру дрона и её допустимый диапазон температур
type DroneModel struct {
	// Идентификатор модели (M30T, H20T, H30T, M2EA)
	ID string
	// Человекочитаемое название
	Name string
	// Минимальная допустимая температура (°C)
	MinTemp float64
	// Максимальная допустимая температура (°C)
	MaxTemp float64
	// Номинальное разрешение тепловой матрицы
	Width  int
	Height int
	// Описание камеры
	Description string
}

// Validate проверяет, что температура v лежит в допустимом диапазоне модели
func (m DroneModel) Validate(v float64) bool {
	return v >= m.MinTemp && v <= m.MaxTemp
}

// Clamp приводит температуру v к ближайшей границе диапазона модели
func (m DroneModel) Clamp(v float64) float64 {
	if v < m.MinTemp {
		return m.MinTemp
	}
	if v > m.MaxTemp {
		return m.MaxTemp
	}
	return v
}

// RangeString диапазон температур в виде "-20°C ~ 550°C"
func (m DroneModel) RangeString() string {
	return fmt.Sprintf("%g°C ~ %g°C", m.MinTemp, m.MaxTemp)
}

// String краткое описание
func (m DroneModel) String() string {
	return fmt.Sprintf("%s (%s)", m.ID, m.RangeString())
}

// Таблица поддерживаемых моделей. Заполняется один раз и больше не меняется.
var droneModels = []DroneModel{
	{
		ID:          "M30T",
		Name:        "DJI M30T",
		MinTemp:     -20,
		MaxTemp:     400,
		Width:       640,
		Height:      512,
		Description: "встроенная тепловизионная камера DJI M30T",
	},
	{
		ID:          "H20T",
		Name:        "DJI Zenmuse H20T",
		MinTemp:     -20,
		MaxTemp:     550,
		Width:       640,
		Height:      512,
		Description: "тепловизионная камера-подвес DJI H20T",
	},
	{
		ID:          "H30T",
		Name:        "DJI Zenmuse H30T",
		MinTemp:     -20,
		MaxTemp:     1600,
		Width:       640,
		Height:      512,
		Description: "высокотемпературная камера-подвес DJI H30T",
	},
	{
		ID:          "M2EA",
		Name:        "DJI Mavic 2 Enterprise Advanced",
		MinTemp:     -10,
		MaxTemp:     400,
		Width:       640,
		Height:      512,
		Description: "тепловизионная камера DJI Mavic 2 Enterprise Advanced",
	},
}

var droneModelIndex = func() map[string]DroneModel {
	index := make(map[string]DroneModel, len(droneModels))
	for _, m := range droneModels {
		index[m.ID] = m
	}
	return index
}()

// DroneModels возвращает копию таблицы моделей в порядке объявления
func DroneModels() []DroneModel {
	res := make([]DroneModel, len(droneModels))
	copy(res, droneModels)
	return res
}

// DroneModelIDs список идентификаторов поддерживаемых моделей
func DroneModelIDs() []string {
	res := make([]string, 0, len(droneModels))
	for _, m := range droneModels {
		res = append(res, m.ID)
	}
	return res
}

// LookupDroneModel ищет модель по идентификатору без учёта регистра
func LookupDroneModel(id string) (DroneModel, bool) {
	m, ok := droneModelIndex[strings.ToUpper(strings.TrimSpace(id))]
	return m, ok
}

// Соответствие подстрок EXIF-тега Model идентификаторам моделей. Порядок важен:
// более длинные совпадения проверяются первыми.
var exifModelAliases = []struct {
	substr string
	id     string
}{
	{"MAVIC2-ENTERPRISE-ADVANCED", "M2EA"},
	{"M2EA", "M2EA"},
	{"M30T", "M30T"},
	{"H20T", "H20T"},
	{"H30T", "H30T"},
}

// DetectDroneModel определяет модель по значению EXIF-тега Model ("ZH20T", "M30T" и т.п.)
func DetectDroneModel(exifModel string) (DroneModel, bool) {
	s := strings.ToUpper(strings.TrimSpace(strings.Trim(exifModel, "\x00")))
	if s == "" {
		return DroneModel{}, false
	}
	for _, a := range exifModelAliases {
		if strings.Contains(s, a.substr) {
			return droneModelIndex[a.id], true
		}
	}
	return DroneModel{}, false
}
