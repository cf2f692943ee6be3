package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kirsrus/rjpeg2tiff/model"
)

// Валидатор идентификатора модели дрона (или AUTO)
func validatorDroneModel(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if strings.EqualFold(strings.TrimSpace(id), model.ModelAuto) {
		return true
	}
	_, ok := model.LookupDroneModel(id)
	return ok
}

// Валидатор способа сжатия TIFF. Пустое значение допускается (сжатие по умолчанию).
func validatorCompression(fl validator.FieldLevel) bool {
	_, ok := model.ParseCompression(fl.Field().String())
	return ok
}
