package dirp

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unsafe"

	"github.com/juju/errors"
	"github.com/spf13/afero"
)

// Коды возврата DJI Thermal SDK
var sdkErrors = map[int32]string{
	-1:  "ошибка выделения памяти",
	-2:  "нулевой указатель",
	-3:  "недопустимые параметры",
	-4:  "повреждены сырые данные",
	-5:  "повреждён заголовок R-JPEG",
	-6:  "повреждена калибровочная кривая",
	-7:  "ошибка разбора R-JPEG",
	-8:  "неверный размер буфера",
	-9:  "недопустимый дескриптор",
	-10: "неподдерживаемый входной формат",
	-11: "неподдерживаемый выходной формат",
	-12: "функция не поддерживается камерой",
	-13: "SDK не готов",
	-14: "SDK не активирован",
	-32: "расширенная ошибка SDK",
}

// Разрешение тепловой матрицы (dirp_resolution_t)
type resolution struct {
	Width  int32
	Height int32
}

// Параметры измерения (dirp_measurement_params_t)
type measurementParams struct {
	Distance   float32
	Humidity   float32
	Emissivity float32
	Reflection float32
}

// Версия API (dirp_api_version_t)
type apiVersion struct {
	API   uint32
	Magic [8]byte
}

// Функции libdirp. Заполняются при загрузке библиотеки.
type library struct {
	path   string
	handle uintptr

	createFromRjpeg      func(data unsafe.Pointer, size int32, handle *uintptr) int32
	destroy              func(handle uintptr) int32
	getResolution        func(handle uintptr, res *resolution) int32
	getMeasurementParams func(handle uintptr, params *measurementParams) int32
	setMeasurementParams func(handle uintptr, params *measurementParams) int32
	measureEx            func(handle uintptr, buf unsafe.Pointer, size int32) int32
	// Может отсутствовать в старых версиях SDK
	getAPIVersion func(version *apiVersion) int32
}

func (m *library) version() string {
	if m.getAPIVersion == nil {
		return "неизвестна"
	}
	var v apiVersion
	if rc := m.getAPIVersion(&v); rc != 0 {
		return fmt.Sprintf("неизвестна (код %d)", rc)
	}
	magic := strings.TrimRight(string(v.Magic[:]), "\x00")
	return fmt.Sprintf("0x%08x %s", v.API, magic)
}

// LibraryName имя файла библиотеки для текущей ОС
func LibraryName() string {
	if runtime.GOOS == "windows" {
		return "libdirp.dll"
	}
	return "libdirp.so"
}

func platformDir() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "linux"
}

// SearchPaths пути поиска библиотеки в порядке приоритета. configured может быть
// путём к файлу библиотеки или к каталогу с ней.
func SearchPaths(fs afero.Fs, configured string) []string {
	name := LibraryName()
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	paths := make([]string, 0, 6)
	if configured != "" {
		if isDir, err := afero.IsDir(fs, configured); err == nil && isDir {
			paths = append(paths, filepath.Join(configured, name))
		} else {
			paths = append(paths, configured)
		}
	}
	paths = append(paths,
		filepath.Join(cwd, name),
		filepath.Join(cwd, "dji_thermal_sdk", name),
		filepath.Join(cwd, "sdk", "tsdk-core", "lib", platformDir(), "release_x64", name),
	)
	if runtime.GOOS != "windows" {
		paths = append(paths, filepath.Join("/usr/local/lib", name))
	}
	return paths
}

// FindLibrary первый существующий путь из SearchPaths
func FindLibrary(fs afero.Fs, configured string) (string, error) {
	paths := SearchPaths(fs, configured)
	for _, p := range paths {
		if ok, err := afero.Exists(fs, p); err == nil && ok {
			return p, nil
		}
	}
	return "", errors.NotFoundf("%s (искали: %s)", LibraryName(), strings.Join(paths, ", "))
}

// InstallationGuide инструкция по установке DJI Thermal SDK
func InstallationGuide() string {
	return `Установка DJI Thermal SDK
=========================

1. Скачайте SDK:
   https://www.dji.com/downloads/softwares/dji-thermal-sdk

2. Распакуйте и поместите библиотеку:
   - Windows: libdirp.dll в каталог программы
   - Linux:   libdirp.so в /usr/local/lib/ (или укажите путь через --sdk-path)

3. Поддерживаемые камеры: DJI M30T, H20T, H30T, M2EA

4. Проверка установки:
   rjpeg2tiff --check-requirements
`
}
