package tool

import (
	"os"
	"path/filepath"
	"strings"
)

// OutputExt расширение выходных файлов
const OutputExt = ".tiff"

var supportedInputExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
}

// IsSupportedInput имя файла похоже на R-JPEG (расширение .jpg/.jpeg в любом регистре)
func IsSupportedInput(name string) bool {
	return supportedInputExt[strings.ToLower(filepath.Ext(name))]
}

// IsTIFF имя файла имеет расширение .tif/.tiff
func IsTIFF(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".tif" || ext == ".tiff"
}

// ReplaceExt заменяет расширение файла name на ext
func ReplaceExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// OutputPath вычисляет путь выходного TIFF для одиночного файла input. Если output
// является существующей директорией, файл создаётся в ней с именем исходного файла.
// Если у output нет расширения .tif/.tiff, оно заменяется на .tiff.
func OutputPath(input, output string) string {
	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		return filepath.Join(output, ReplaceExt(filepath.Base(input), OutputExt))
	}
	if strings.HasSuffix(output, string(os.PathSeparator)) {
		return filepath.Join(output, ReplaceExt(filepath.Base(input), OutputExt))
	}
	if !IsTIFF(output) {
		return ReplaceExt(output, OutputExt)
	}
	return output
}

// BatchOutputPath путь выходного TIFF для файла input из дерева inputRoot с сохранением
// относительной структуры директорий в outputRoot
func BatchOutputPath(inputRoot, input, outputRoot string) string {
	rel, err := filepath.Rel(inputRoot, input)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(input)
	}
	return filepath.Join(outputRoot, ReplaceExt(rel, OutputExt))
}
