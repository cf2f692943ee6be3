package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirsrus/rjpeg2tiff/model"
	dirpSvcMod "github.com/kirsrus/rjpeg2tiff/service/dirp"
	syntheticSvcMod "github.com/kirsrus/rjpeg2tiff/service/synthetic"
	dbStoreMod "github.com/kirsrus/rjpeg2tiff/store/db"

	"github.com/spf13/afero"
)

func printCheck(ok bool, format string, args ...interface{}) {
	mark := "[OK]  "
	if !ok {
		mark = "[НЕТ] "
	}
	fmt.Println(mark + fmt.Sprintf(format, args...))
}

// Проверка окружения. Возвращает false, если преобразование невозможно.
func checkRequirements(opt options) bool {
	fs := afero.NewOsFs()
	ok := true
	fmt.Println("Проверка окружения")

	decoder := strings.ToLower(strings.TrimSpace(cfg.Sdk.Decoder))
	path, err := dirpSvcMod.FindLibrary(fs, cfg.Sdk.Path)
	switch {
	case err != nil:
		printCheck(decoder == syntheticSvcMod.Name, "DJI Thermal SDK: %s не найдена", dirpSvcMod.LibraryName())
		if decoder != syntheticSvcMod.Name {
			ok = false
			fmt.Println(dirpSvcMod.InstallationGuide())
		}
	default:
		dec, err := dirpSvcMod.NewDirp(&dirpSvcMod.ConfigDirp{Log: log, Path: path})
		if err != nil {
			printCheck(false, "DJI Thermal SDK: %s не загружается: %v", path, err)
			ok = ok && decoder == syntheticSvcMod.Name
			break
		}
		printCheck(true, "DJI Thermal SDK: %s, версия %s", path, dec.Version())
		_ = dec.Close()
	}

	switch decoder {
	case "", dirpSvcMod.Name:
		printCheck(true, "декодер: %s", dirpSvcMod.Name)
	case syntheticSvcMod.Name:
		printCheck(true, "декодер: %s (демонстрационные данные, не для измерений)", syntheticSvcMod.Name)
	default:
		printCheck(false, "декодер: неизвестный %q", cfg.Sdk.Decoder)
		ok = false
	}

	if cfg.Db.Filename == "" {
		printCheck(true, "история преобразований отключена")
	} else {
		st, err := dbStoreMod.NewDb(context.Background(), &dbStoreMod.ConfigDb{Log: log, DbFile: cfg.Db.Filename})
		if err != nil {
			printCheck(false, "история преобразований %s: %v", cfg.Db.Filename, err)
			ok = false
		} else {
			printCheck(true, "история преобразований: %s", cfg.Db.Filename)
			_ = st.Close()
		}
	}

	if opt.output != "" {
		dir := opt.output
		if !opt.batch {
			if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
				dir = filepath.Dir(dir)
			}
		}
		if err := checkWritable(fs, dir); err != nil {
			printCheck(false, "каталог %s недоступен для записи: %v", dir, err)
			ok = false
		} else {
			printCheck(true, "каталог %s доступен для записи", dir)
		}
	}

	fmt.Println("Поддерживаемые модели:")
	for _, m := range model.DroneModels() {
		fmt.Printf("  %-5s %-28s %s\n", m.ID, m.Name, m.RangeString())
	}
	return ok
}

func checkWritable(fs afero.Fs, dir string) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := afero.TempFile(fs, dir, ".rjpeg2tiff.*.tmp")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return fs.Remove(name)
}
