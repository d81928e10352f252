package models

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	instagramRe = regexp.MustCompile(`^[a-zA-Z][\w.]{0,29}$`)
	crefRe      = regexp.MustCompile(`^CREF\d{6}-[GF]/[A-Z]{2}$`)
	phoneRe     = regexp.MustCompile(`^\(?[1-9]{2}\)?\s?(?:9[1-9]\d{3}|[2-8]\d{3})-?\d{4}$`)

	weekdays = map[string]bool{
		"segunda": true, "terça": true, "terca": true, "quarta": true,
		"quinta": true, "sexta": true, "sabado": true, "domingo": true,
	}
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("age", func(fl validator.FieldLevel) bool {
			age, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
			return err == nil && age >= 12 && age <= 99
		})
		_ = validate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
			return weekdays[strings.ToLower(strings.TrimSpace(fl.Field().String()))]
		})
		_ = validate.RegisterValidation("instagram", func(fl validator.FieldLevel) bool {
			return instagramRe.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("cref", func(fl validator.FieldLevel) bool {
			return crefRe.MatchString(fl.Field().String())
		})
		_ = validate.RegisterValidation("phone_br", func(fl validator.FieldLevel) bool {
			return phoneRe.MatchString(fl.Field().String())
		})
		validate.RegisterStructValidation(func(sl validator.StructLevel) {
			f := sl.Current().Interface().(RoutineForm)
			start, errStart := time.Parse(DateLayout, f.DataInicio)
			end, errEnd := time.Parse(DateLayout, f.DataTermino)
			if errStart == nil && errEnd == nil && start.After(end) {
				sl.ReportError(f.DataInicio, "DataInicio", "DataInicio", "date_order", "")
			}
		}, RoutineForm{})
	})
	return validate
}

// FieldError is one failed form field with its user-facing message.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError is returned when a form does not pass validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks a form struct and translates failures into messages.
func Validate(form interface{}) error {
	err := validatorInstance().Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "Email inválido!"
	case "age":
		return "A idade deve ser entre 12 e 99 anos!"
	case "weekday":
		return "A divisão deve ser um dia da semana válido"
	case "instagram":
		return "Nome de usuário inválido no Instagram."
	case "cref":
		return "CREF inválido. O formato deve ser CREF123456-G/UF."
	case "phone_br":
		return "Número de telefone inválido!"
	case "date_order":
		return "A data de início não pode ser maior que a data de término."
	case "datetime":
		return "Data inválida, use AAAA-MM-DD."
	}

	switch fe.Field() {
	case "Nome":
		if fe.Tag() == "max" {
			return "Nome muito grande!"
		}
		if fe.Tag() == "min" && fe.Param() == "6" {
			return "Nome de rotina muito pequeno"
		}
		return "O nome é obrigatório!"
	case "Senha":
		return "A senha deve ter pelo menos 6 caracteres!"
	case "Idade":
		return "A idade é obrigatória!"
	case "Telefone":
		return "Número de telefone inválido!"
	case "Sexo":
		return "Sexo é obrigatório!"
	case "Grupo":
		return "Selecione o grupo do aluno!"
	case "Series":
		return "Quantidade de séries inválida!"
	case "Reps":
		return "Quantidade de repetições inválida!"
	case "DivisaoTreinos":
		return "Divisão de treinos é obrigatória!"
	case "ObjetivoTreino":
		return "Objetivo de treino é obrigatório!"
	case "DificuldadeTreino":
		return "Dificuldade do treino é obrigatória!"
	case "DataInicio":
		return "Data de início é obrigatória!"
	case "DataTermino":
		return "Data de término é obrigatória!"
	case "Exercicio":
		return "Selecione pelo menos um exercício!"
	}
	return fe.Field() + " inválido"
}
