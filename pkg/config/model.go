package config

type (

	// Config конфигурация программы
	Config struct {

		// Файл, из которого прочитана конфигурация (пусто, если использованы значения по умолчанию)
		File string `yaml:"-"`

		// Описание логирования
		Log struct {

			// Путь к файлу лога
			Path string

			// Имя файла логирования. Пустое значение - только консоль
			Filename string

			// Уровень логирования
			Level string `required:"true" default:"info"`

			// Выводить лог только на консоль
			Console bool `default:"false"`
		}

		// История преобразований
		Db struct {

			// Имя файла базы данных sqlite. Пустое значение отключает историю
			Filename string

			// Количество дней хранения истории
			ArchiveDays int `default:"30"`
		}

		// Библиотека DJI Thermal SDK
		Sdk struct {

			// Путь к libdirp.so / libdirp.dll. Если не задан, ищется в стандартных местах
			Path string

			// Декодер: dirp (DJI Thermal SDK) или synthetic (демонстрационные данные)
			Decoder string `default:"dirp"`
		}

		// Параметры преобразования
		Convert struct {

			// Модель дрона по умолчанию (M30T, H20T, H30T, M2EA, AUTO)
			Model string `default:"M30T"`

			// Шаг квантования температуры, °C
			Precision float64 `default:"0.1"`

			// Сжатие TIFF: none, lzw, zip
			Compression string `default:"lzw"`

			// Количество одновременных преобразований в пакетном режиме
			Workers int `default:"4"`

			// Ограничение времени пакетной обработки в секундах (0 - без ограничения)
			Timeout int `default:"0"`

			// Сохранять PNG-превью рядом с TIFF
			Preview bool `default:"false"`

			// Ширина превью в пикселях (0 - исходная)
			PreviewWidth uint `default:"0"`
		}

		// Параметры измерения, передаваемые в SDK. Нулевые значения - брать из R-JPEG
		Measurement struct {
			Distance   float64
			Humidity   float64
			Emissivity float64
			Reflection float64
		}

		// Обслуживание WEB-интерфейса
		Http struct {

			// Порт WEB-сервера
			Port uint `default:"8080"`

			// Корень директории со статическим контентом
			AssetsDir string `default:"assets"`

			// Директория для загруженных файлов и результатов
			WorkDir string `default:"./webdata"`

			// Максимальный размер загружаемого файла в мегабайтах
			MaxUploadMB int `default:"64"`
		}
	}
)
