package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	batchCtlMod "github.com/kirsrus/rjpeg2tiff/controller/batch"
	converterCtlMod "github.com/kirsrus/rjpeg2tiff/controller/converter"
	"github.com/kirsrus/rjpeg2tiff/controller/encoder"
	managerCtlMod "github.com/kirsrus/rjpeg2tiff/controller/manager"
	"github.com/kirsrus/rjpeg2tiff/model"
	"github.com/kirsrus/rjpeg2tiff/pkg/config"
	"github.com/kirsrus/rjpeg2tiff/pkg/logger"
	"github.com/kirsrus/rjpeg2tiff/pkg/tool"
	"github.com/kirsrus/rjpeg2tiff/service"
	dirpSvcMod "github.com/kirsrus/rjpeg2tiff/service/dirp"
	syntheticSvcMod "github.com/kirsrus/rjpeg2tiff/service/synthetic"
	webSvcMod "github.com/kirsrus/rjpeg2tiff/service/web"
	"github.com/kirsrus/rjpeg2tiff/store"
	dbStoreMod "github.com/kirsrus/rjpeg2tiff/store/db"

	"github.com/juju/errors"
	"github.com/maruel/interrupt"
	"github.com/sirupsen/logrus"
)

var (
	cfg *config.Config
	log *logrus.Logger
)

// Параметры командной строки. Незаданные значения берутся из конфигурации.
type options struct {
	input       string
	output      string
	model       string
	batch       bool
	recursive   bool
	checkReq    bool
	sdkPath     string
	logLevel    string
	compression string
	precision   float64
	workers     int
	config      string
	preview     bool
	watch       bool
	serve       bool
	inspect     string
	decoder     string
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ОШИБКА: %v\n", err)
		if log != nil {
			log.Debug(errors.ErrorStack(err))
			if cfg != nil && cfg.Log.Filename != "" {
				fmt.Fprintf(os.Stderr, "Для подробностей смотри лог: %s\n", filepath.Join(cfg.Log.Path, cfg.Log.Filename))
			}
		}
		os.Exit(1)
	}
	os.Exit(code)
}

// Регистрирует флаг под несколькими именами
func stringVar(p *string, names []string, value, usage string) {
	for _, name := range names {
		flag.StringVar(p, name, value, usage)
	}
}

func boolVar(p *bool, names []string, usage string) {
	for _, name := range names {
		flag.BoolVar(p, name, false, usage)
	}
}

func parseFlags() (options, error) {
	var opt options
	stringVar(&opt.input, []string{"i", "input"}, "", "входной R-JPEG или каталог (с --batch)")
	stringVar(&opt.output, []string{"o", "output"}, "", "выходной TIFF или каталог")
	stringVar(&opt.model, []string{"m", "model"}, "", "модель дрона: "+strings.Join(model.DroneModelIDs(), ", ")+" или auto")
	boolVar(&opt.batch, []string{"batch"}, "пакетная обработка каталога")
	boolVar(&opt.recursive, []string{"recursive"}, "обходить подкаталоги")
	boolVar(&opt.checkReq, []string{"check-requirements"}, "проверить окружение и выйти")
	stringVar(&opt.sdkPath, []string{"sdk-path"}, "", "путь к libdirp")
	stringVar(&opt.logLevel, []string{"log-level"}, "", "уровень журнала: debug, info, warning, error")
	stringVar(&opt.compression, []string{"compression"}, "", "сжатие TIFF: none, lzw, zip")
	flag.Float64Var(&opt.precision, "precision", 0, "шаг квантования температуры, °C")
	flag.IntVar(&opt.workers, "workers", 0, "число одновременных преобразований")
	stringVar(&opt.config, []string{"config"}, config.FileName, "файл конфигурации")
	boolVar(&opt.preview, []string{"preview"}, "сохранять PNG-превью")
	boolVar(&opt.watch, []string{"watch"}, "преобразовывать новые файлы каталога по мере появления")
	boolVar(&opt.serve, []string{"serve"}, "запустить WEB-интерфейс")
	stringVar(&opt.inspect, []string{"inspect"}, "", "показать сведения о калиброванном TIFF и выйти")
	stringVar(&opt.decoder, []string{"decoder"}, "", "декодер: dirp или synthetic")
	flag.Parse()

	if flag.NArg() != 0 {
		return opt, errors.Errorf("неожиданные аргументы: %s", strings.Join(flag.Args(), " "))
	}
	return opt, nil
}

// Значения командной строки поверх конфигурации
func applyFlags(opt options) {
	if opt.sdkPath != "" {
		cfg.Sdk.Path = opt.sdkPath
	}
	if opt.decoder != "" {
		cfg.Sdk.Decoder = opt.decoder
	}
	if opt.logLevel != "" {
		cfg.Log.Level = opt.logLevel
	}
	if opt.model != "" {
		cfg.Convert.Model = opt.model
	}
	if opt.compression != "" {
		cfg.Convert.Compression = opt.compression
	}
	if opt.precision != 0 {
		cfg.Convert.Precision = opt.precision
	}
	if opt.workers != 0 {
		cfg.Convert.Workers = opt.workers
	}
	if opt.preview {
		cfg.Convert.Preview = true
	}
}

func encodingOptions() model.EncodingOptions {
	return model.EncodingOptions{
		Precision:   cfg.Convert.Precision,
		Compression: model.Compression(cfg.Convert.Compression),
		BitDepth:    model.BitDepth,
	}
}

func measurementParams() model.MeasurementParams {
	return model.MeasurementParams{
		Distance:   cfg.Measurement.Distance,
		Humidity:   cfg.Measurement.Humidity,
		Emissivity: cfg.Measurement.Emissivity,
		Reflection: cfg.Measurement.Reflection,
	}
}

// Код возврата 0, если все файлы преобразованы, иначе 1
func run() (int, error) {
	opt, err := parseFlags()
	if err != nil {
		return 1, errors.Trace(err)
	}

	cfg, err = config.Load(opt.config)
	if err != nil {
		return 1, errors.Annotatef(err, "чтение конфигурации %s", opt.config)
	}
	applyFlags(opt)
	log = logger.GetWithConfig(logger.Config{
		Path:    cfg.Log.Path,
		File:    cfg.Log.Filename,
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
	log.Debugf("конфигурация:\n%s", cfg.AsYaml())

	if opt.checkReq {
		if checkRequirements(opt) {
			return 0, nil
		}
		return 1, nil
	}
	if opt.inspect != "" {
		return 0, errors.Trace(inspect(opt.inspect))
	}

	// Отлавливаем сигнал завершения работы программы
	interrupt.HandleCtrlC()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupt.Channel:
			log.Info("получена команда на завершение работы программы")
			cancel()
		case <-ctx.Done():
		}
	}()

	// region Декодер

	decoder, err := newDecoder()
	if err != nil {
		return 1, errors.Trace(err)
	}
	defer func() { _ = decoder.Close() }()
	log.Infof("декодер %s %s", decoder.Name(), decoder.Version())

	// endregion
	// region История преобразований

	var dbStore store.DbStore
	if cfg.Db.Filename != "" {
		dbStore, err = dbStoreMod.NewDb(ctx, &dbStoreMod.ConfigDb{
			Log:    log,
			DbFile: cfg.Db.Filename,
		})
		if err != nil {
			return 1, errors.Trace(err)
		}
		defer func() { _ = dbStore.Close() }()
		if cfg.Db.ArchiveDays > 0 {
			if err := dbStore.Clean(cfg.Db.ArchiveDays); err != nil {
				log.Warnf("ошибка очистки истории: %v", err)
			}
		}
	}

	// endregion
	// region Контроллеры

	enc, err := encoder.NewEncoder(&encoder.ConfigEncoder{Log: log})
	if err != nil {
		return 1, errors.Trace(err)
	}
	converterCtl, err := converterCtlMod.NewConverter(decoder, enc, dbStore, &converterCtlMod.ConfigConverter{
		Log:          log,
		PreviewWidth: cfg.Convert.PreviewWidth,
	})
	if err != nil {
		return 1, errors.Trace(err)
	}
	batchCtl, err := batchCtlMod.NewBatch(converterCtl, &batchCtlMod.ConfigBatch{
		Log:     log,
		Workers: cfg.Convert.Workers,
		Timeout: time.Duration(cfg.Convert.Timeout) * time.Second,
	})
	if err != nil {
		return 1, errors.Trace(err)
	}

	// endregion

	switch {
	case opt.serve:
		return serve(ctx, opt, converterCtl, batchCtl, dbStore)
	case opt.watch:
		if opt.input == "" {
			return 1, errors.New("для --watch укажите каталог -i")
		}
		return 0, errors.Trace(batchCtl.Watch(ctx, batchRequest(opt), printProgress))
	case opt.batch:
		if opt.input == "" {
			return 1, errors.New("для --batch укажите каталог -i")
		}
		report, err := batchCtl.Run(ctx, batchRequest(opt), printProgress)
		if err != nil {
			return 1, errors.Trace(err)
		}
		printReport(report)
		if !report.OK() {
			return 1, nil
		}
		return 0, nil
	default:
		if opt.input == "" {
			flag.Usage()
			return 1, errors.New("не указан входной файл -i")
		}
		output := opt.output
		if output == "" {
			output = tool.ReplaceExt(opt.input, tool.OutputExt)
		}
		res := converterCtl.Convert(ctx, model.ConvertRequest{
			Input:       opt.input,
			Output:      tool.OutputPath(opt.input, output),
			Model:       cfg.Convert.Model,
			Options:     encodingOptions(),
			Measurement: measurementParams(),
			Preview:     cfg.Convert.Preview,
		})
		fmt.Println(res)
		if res.OutOfRange.Count > 0 {
			fmt.Println("ПРЕДУПРЕЖДЕНИЕ:", res.OutOfRange)
		}
		if !res.Success() {
			log.Debug(errors.ErrorStack(res.Err))
			return 1, nil
		}
		return 0, nil
	}
}

// Декодер по конфигурации. Демонстрационные данные используются только по явному выбору.
func newDecoder() (service.DecoderSvc, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Sdk.Decoder)) {
	case "", dirpSvcMod.Name:
		decoder, err := dirpSvcMod.NewDirp(&dirpSvcMod.ConfigDirp{
			Log:         log,
			Path:        cfg.Sdk.Path,
			Measurement: measurementParams(),
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, dirpSvcMod.InstallationGuide())
			return nil, errors.Annotate(err, "DJI Thermal SDK недоступен")
		}
		return decoder, nil
	case syntheticSvcMod.Name:
		return syntheticSvcMod.NewSynthetic(&syntheticSvcMod.ConfigSynthetic{Log: log})
	default:
		return nil, errors.Errorf("неизвестный декодер %q", cfg.Sdk.Decoder)
	}
}

func batchRequest(opt options) model.BatchRequest {
	output := opt.output
	if output == "" {
		output = opt.input
	}
	return model.BatchRequest{
		InputDir:    opt.input,
		OutputDir:   output,
		Recursive:   opt.recursive,
		Model:       cfg.Convert.Model,
		Options:     encodingOptions(),
		Measurement: measurementParams(),
		Preview:     cfg.Convert.Preview,
		Workers:     cfg.Convert.Workers,
	}
}

func printProgress(done, total int, res model.ConversionResult) {
	fmt.Printf("[%d/%d] %s\n", done, total, res)
	if res.OutOfRange.Count > 0 {
		fmt.Printf("        ПРЕДУПРЕЖДЕНИЕ: %s\n", res.OutOfRange)
	}
}

func printReport(report model.BatchReport) {
	fmt.Printf("Обработано файлов: %d, успешно: %d, с ошибкой: %d, время: %v\n",
		len(report.Results), report.Succeeded(), report.Failed(), report.Duration.Round(time.Millisecond))
	for _, res := range report.Results {
		if !res.Success() {
			fmt.Printf("  %s: %s: %v\n", res.Input, model.ErrorKind(res.Err), res.Err)
		}
	}
}

// WEB-интерфейс. С --watch новые файлы каталога -i также преобразуются и попадают в события.
func serve(ctx context.Context, opt options, converterCtl *converterCtlMod.Converter, batchCtl *batchCtlMod.Batch, dbStore store.DbStore) (int, error) {
	webSvc, err := webSvcMod.NewWeb(ctx, converterCtl, dbStore, &webSvcMod.ConfigWeb{
		Log:         log,
		Port:        cfg.Http.Port,
		AssetsDir:   cfg.Http.AssetsDir,
		WorkDir:     cfg.Http.WorkDir,
		MaxUploadMB: cfg.Http.MaxUploadMB,
		Model:       cfg.Convert.Model,
		Options:     encodingOptions(),
		Measurement: measurementParams(),
		Preview:     cfg.Convert.Preview,
	})
	if err != nil {
		return 1, errors.Trace(err)
	}
	webSvc.Static("/")
	webSvc.Api("/api")
	webSvc.Events("/api/events")

	var watch *model.BatchRequest
	if opt.watch && opt.input != "" {
		req := batchRequest(opt)
		watch = &req
	}
	managerCtl, err := managerCtlMod.NewManager(ctx, &managerCtlMod.ConfigManager{
		Log:             log,
		WebSvc:          webSvc,
		BatchCtl:        batchCtl,
		DbStore:         dbStore,
		Watch:           watch,
		CleanBasePeriod: time.Hour * 24 * time.Duration(cfg.Db.ArchiveDays),
	})
	if err != nil {
		return 1, errors.Trace(err)
	}
	if err := managerCtl.Serve(); err != nil {
		return 1, errors.Trace(err)
	}
	return 0, nil
}
