package models

import (
	"sort"
	"time"
)

// ExerciseDetail is what the trainer prescribes for one exercise.
type ExerciseDetail struct {
	Series      string `json:"series" validate:"required,max=3"`
	Reps        string `json:"reps" validate:"required,max=3"`
	Divisao     string `json:"divisao" validate:"required,weekday"`
	YoutubeLink string `json:"youtubeLink,omitempty"`
}

// ExerciseEntry is one element of a treino's exercicios array: exercise
// name to prescription.
type ExerciseEntry map[string]ExerciseDetail

// Workout is a treino, one document per muscle group inside a routine.
type Workout struct {
	ID          string          `json:"id"`
	Musculo     string          `json:"musculo"`
	Exercicios  []ExerciseEntry `json:"exercicios"`
	DataCriacao time.Time       `json:"dataCriacao"`
}

func WorkoutFromData(id string, data map[string]interface{}) Workout {
	w := Workout{
		ID:          id,
		Musculo:     str(data, "musculo", ""),
		DataCriacao: timestamp(data, "dataCriacao"),
	}
	for _, raw := range sliceValue(data["exercicios"]) {
		entry := ExerciseEntry{}
		for name, detail := range mapValue(mapValue(raw)["exercicio"]) {
			d := mapValue(detail)
			entry[name] = ExerciseDetail{
				Series:      str(d, "series", ""),
				Reps:        str(d, "reps", ""),
				Divisao:     str(d, "divisao", ""),
				YoutubeLink: str(d, "youtubeLink", ""),
			}
		}
		w.Exercicios = append(w.Exercicios, entry)
	}
	return w
}

// Data is the array element stored for this entry.
func (e ExerciseEntry) Data() map[string]interface{} {
	exercicio := make(map[string]interface{}, len(e))
	for name, d := range e {
		exercicio[name] = map[string]interface{}{
			"series":      d.Series,
			"reps":        d.Reps,
			"divisao":     d.Divisao,
			"youtubeLink": d.YoutubeLink,
		}
	}
	return map[string]interface{}{"exercicio": exercicio}
}

// WorkoutForm adds exercises to the treino of one muscle group.
type WorkoutForm struct {
	Musculo   string
	Exercicio ExerciseEntry `validate:"required,min=1,dive"`
}

// MuscleGroup is a display section of workouts sharing a muscle.
type MuscleGroup struct {
	Musculo  string
	Treinos  []Workout
	Exercise int
}

// GroupByMuscle keeps the order in which muscles first appear.
func GroupByMuscle(workouts []Workout) []MuscleGroup {
	var groups []MuscleGroup
	index := map[string]int{}
	for _, w := range workouts {
		i, ok := index[w.Musculo]
		if !ok {
			i = len(groups)
			index[w.Musculo] = i
			groups = append(groups, MuscleGroup{Musculo: w.Musculo})
		}
		groups[i].Treinos = append(groups[i].Treinos, w)
		groups[i].Exercise += len(w.Exercicios)
	}
	return groups
}

// ExerciseNames returns the sorted exercise names of an entry.
func (e ExerciseEntry) ExerciseNames() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
