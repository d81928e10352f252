package models

import "time"

const DateLayout = "2006-01-02"

// Routine is a rotina: a named program with a date range.
type Routine struct {
	ID                string    `json:"id"`
	Nome              string    `json:"nome"`
	DivisaoTreinos    string    `json:"divisaoTreinos"`
	ObjetivoTreino    string    `json:"objetivoTreino"`
	DificuldadeTreino string    `json:"dificuldadeTreino"`
	DataInicio        string    `json:"dataInicio"`
	DataTermino       string    `json:"dataTermino"`
	DataCriacao       time.Time `json:"dataCriacao"`
}

func RoutineFromData(id string, data map[string]interface{}) Routine {
	return Routine{
		ID:                id,
		Nome:              str(data, "nome", ""),
		DivisaoTreinos:    str(data, "divisaoTreinos", ""),
		ObjetivoTreino:    str(data, "objetivoTreino", ""),
		DificuldadeTreino: str(data, "dificuldadeTreino", ""),
		DataInicio:        str(data, "dataInicio", ""),
		DataTermino:       str(data, "dataTermino", ""),
		DataCriacao:       timestamp(data, "dataCriacao"),
	}
}

// RoutineForm is the create-routine input.
type RoutineForm struct {
	Nome              string `validate:"required,min=6,max=50"`
	DivisaoTreinos    string `validate:"required"`
	ObjetivoTreino    string `validate:"required"`
	DificuldadeTreino string `validate:"required"`
	DataInicio        string `validate:"required,datetime=2006-01-02"`
	DataTermino       string `validate:"required,datetime=2006-01-02"`
}

// Data is the stored payload without the creation timestamp.
func (f RoutineForm) Data() map[string]interface{} {
	return map[string]interface{}{
		"nome":              f.Nome,
		"divisaoTreinos":    f.DivisaoTreinos,
		"objetivoTreino":    f.ObjetivoTreino,
		"dificuldadeTreino": f.DificuldadeTreino,
		"dataInicio":        f.DataInicio,
		"dataTermino":       f.DataTermino,
	}
}
