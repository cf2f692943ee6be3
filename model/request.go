package model

// ConvertRequest запрос на преобразование одного R-JPEG в TIFF
type ConvertRequest struct {
	// Идентификатор задания. Если не задан, будет сгенерирован.
	ID string `conform:"trim"`
	// Путь к исходному R-JPEG
	Input string `conform:"trim" validate:"required"`
	// Путь к выходному TIFF
	Output string `conform:"trim" validate:"required"`
	// Модель дрона или AUTO
	Model string `conform:"trim,upper" validate:"required,dronemodel"`

	Options     EncodingOptions
	Measurement MeasurementParams

	// Сохранить рядом PNG-превью в псевдоцветах
	Preview bool
}

// BatchRequest запрос на пакетное преобразование каталога
type BatchRequest struct {
	// Каталог с исходными R-JPEG
	InputDir string `conform:"trim" validate:"required"`
	// Каталог для TIFF. Структура подкаталогов сохраняется.
	OutputDir string `conform:"trim" validate:"required"`
	// Обходить подкаталоги
	Recursive bool
	// Модель дрона или AUTO
	Model string `conform:"trim,upper" validate:"required,dronemodel"`

	Options     EncodingOptions
	Measurement MeasurementParams
	Preview     bool

	// Число одновременно обрабатываемых файлов. 0 - значение по умолчанию.
	Workers int `validate:"min=0,max=64"`
}

// Request запрос на преобразование одного файла из пакета
func (m BatchRequest) Request(input, output string) ConvertRequest {
	return ConvertRequest{
		Input:       input,
		Output:      output,
		Model:       m.Model,
		Options:     m.Options,
		Measurement: m.Measurement,
		Preview:     m.Preview,
	}
}
