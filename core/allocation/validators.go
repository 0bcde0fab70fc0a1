package allocation

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/markalloc/core"
)

var (
	contentTypeTag  = "contenttype"
	contentTypeText = "invalid content type"

	posMarksTag  = "posmarks"
	posMarksText = "must be a positive number of marks"

	maxMarksTag  = "maxmarks"
	maxMarksText = "must be at most 1000000 marks"
)

// InitValidators registers the allocation validation rules.
// core.InitValidators must be called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(contentTypeTag, contentTypeValidation)
	core.RegisterCustomTranslation(validate, translator, contentTypeTag, contentTypeText)

	_ = validate.RegisterValidation(posMarksTag, posMarksValidation)
	core.RegisterCustomTranslation(validate, translator, posMarksTag, posMarksText)

	_ = validate.RegisterValidation(maxMarksTag, maxMarksValidation)
	core.RegisterCustomTranslation(validate, translator, maxMarksTag, maxMarksText)
}

func contentTypeValidation(fl validator.FieldLevel) bool {
	return ContentType(fl.Field().String()).IsValid()
}

func posMarksValidation(fl validator.FieldLevel) bool {
	return fl.Field().Int() > 0
}

func maxMarksValidation(fl validator.FieldLevel) bool {
	return fl.Field().Int() <= MaxMarks
}
