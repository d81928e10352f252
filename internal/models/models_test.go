package models

import (
	"errors"
	"testing"
	"time"
)

func TestPersonalFromDataDefaults(t *testing.T) {
	p := PersonalFromData("t1", map[string]interface{}{"email": "p@x.com"})
	if p.Nome != "Usuário" {
		t.Errorf("Nome = %q, want Usuário", p.Nome)
	}
	if p.Email != "p@x.com" || p.Telefone != "" || p.CREF != "" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestStudentRootData(t *testing.T) {
	s := Student{ID: "a1", Nome: "Maria", Email: "maria@x.com"}
	nested := s.Data()
	root := s.RootData("t1")

	if root["personalId"] != "t1" {
		t.Errorf("personalId = %v, want t1", root["personalId"])
	}
	if _, ok := nested["personalId"]; ok {
		t.Error("nested payload must not carry personalId")
	}
	for k, v := range nested {
		if root[k] != v {
			t.Errorf("field %s differs: nested %v root %v", k, v, root[k])
		}
	}

	back := StudentRootFromData(root)
	if back.ID != "a1" || back.PersonalID != "t1" || back.Nome != "Maria" {
		t.Errorf("StudentRootFromData = %+v", back)
	}
}

func TestWorkoutRoundTripShape(t *testing.T) {
	entry := ExerciseEntry{"Supino reto": {Series: "4", Reps: "10", Divisao: "segunda"}}
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	data := map[string]interface{}{
		"musculo":     "Peito",
		"exercicios":  []interface{}{entry.Data(), entry.Data()},
		"dataCriacao": created.Format(time.RFC3339Nano),
	}

	w := WorkoutFromData("Peito", data)
	if len(w.Exercicios) != 2 {
		t.Fatalf("len(Exercicios) = %d, want 2", len(w.Exercicios))
	}
	if got := w.Exercicios[0]["Supino reto"].Reps; got != "10" {
		t.Errorf("Reps = %q, want 10", got)
	}
	if !w.DataCriacao.Equal(created) {
		t.Errorf("DataCriacao = %v, want %v", w.DataCriacao, created)
	}
}

func TestGroupByMuscle(t *testing.T) {
	groups := GroupByMuscle([]Workout{
		{ID: "1", Musculo: "Peito", Exercicios: make([]ExerciseEntry, 2)},
		{ID: "2", Musculo: "Costas", Exercicios: make([]ExerciseEntry, 1)},
		{ID: "3", Musculo: "Peito", Exercicios: make([]ExerciseEntry, 1)},
	})
	if len(groups) != 2 || groups[0].Musculo != "Peito" || groups[1].Musculo != "Costas" {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0].Exercise != 3 || len(groups[0].Treinos) != 2 {
		t.Errorf("Peito group = %+v", groups[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    interface{}
		wantErr bool
		field   string
	}{
		{
			name: "valid student",
			form: StudentForm{Nome: "Maria", Email: "maria@x.com", Idade: "25", Sexo: "Feminino", Grupo: "Online"},
		},
		{
			name:    "student too young",
			form:    StudentForm{Nome: "Maria", Email: "maria@x.com", Idade: "11", Sexo: "Feminino", Grupo: "Online"},
			wantErr: true,
			field:   "Idade",
		},
		{
			name:    "student bad group",
			form:    StudentForm{Nome: "Maria", Email: "maria@x.com", Idade: "20", Sexo: "Feminino", Grupo: "Remoto"},
			wantErr: true,
			field:   "Grupo",
		},
		{
			name: "valid routine",
			form: RoutineForm{Nome: "Hipertrofia A", DivisaoTreinos: "ABC", ObjetivoTreino: "Hipertrofia",
				DificuldadeTreino: "Médio", DataInicio: "2024-01-01", DataTermino: "2024-03-01"},
		},
		{
			name: "routine start after end",
			form: RoutineForm{Nome: "Hipertrofia A", DivisaoTreinos: "ABC", ObjetivoTreino: "Hipertrofia",
				DificuldadeTreino: "Médio", DataInicio: "2024-04-01", DataTermino: "2024-03-01"},
			wantErr: true,
			field:   "DataInicio",
		},
		{
			name: "routine name too short",
			form: RoutineForm{Nome: "Hiper", DivisaoTreinos: "ABC", ObjetivoTreino: "Hipertrofia",
				DificuldadeTreino: "Médio", DataInicio: "2024-01-01", DataTermino: "2024-03-01"},
			wantErr: true,
			field:   "Nome",
		},
		{
			name:    "workout bad weekday",
			form:    WorkoutForm{Musculo: "Peito", Exercicio: ExerciseEntry{"Crucifixo": {Series: "3", Reps: "12", Divisao: "feriado"}}},
			wantErr: true,
			field:   "Divisao",
		},
		{
			name: "workout accented weekday",
			form: WorkoutForm{Musculo: "Peito", Exercicio: ExerciseEntry{"Crucifixo": {Series: "3", Reps: "12", Divisao: "Terça"}}},
		},
		{
			name:    "profile bad cref",
			form:    PersonalUpdate{Nome: "João", Email: "j@x.com", Senha: "123456", Telefone: "(11) 91234-5678", CREF: "123"},
			wantErr: true,
			field:   "CREF",
		},
		{
			name: "sign-up valid",
			form: PersonalSignUp{Email: "j@x.com", Senha: "123456", Nome: "João", Telefone: "(11) 91234-5678", Sexo: "Masculino"},
		},
		{
			name:    "sign-up bad phone",
			form:    PersonalSignUp{Email: "j@x.com", Senha: "123456", Nome: "João", Telefone: "abc", Sexo: "Masculino"},
			wantErr: true,
			field:   "Telefone",
		},
		{
			name:    "sign-up unknown sex",
			form:    PersonalSignUp{Email: "j@x.com", Senha: "123456", Nome: "João", Telefone: "11912345678", Sexo: "Outro"},
			wantErr: true,
			field:   "Sexo",
		},
		{
			name:    "sign-up without phone",
			form:    PersonalSignUp{Email: "j@x.com", Senha: "123456", Nome: "João", Sexo: "Feminino"},
			wantErr: true,
			field:   "Telefone",
		},
		{
			name:    "aluno self edit bad phone",
			form:    StudentUpdate{Nome: "Maria", Email: "maria@x.com", Senha: "123456", Telefone: "abc"},
			wantErr: true,
			field:   "Telefone",
		},
		{
			name: "aluno self edit",
			form: StudentUpdate{Nome: "Maria", Email: "maria@x.com", Senha: "123456", Telefone: "11987654321"},
		},
		{
			name: "profile valid",
			form: PersonalUpdate{Nome: "João", Email: "j@x.com", Senha: "123456", Telefone: "(11) 91234-5678",
				Instagram: "joao.personal", CREF: "CREF123456-G/SP"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.form)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			found := false
			for _, f := range verr.Fields {
				if f.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want %s", verr.Fields, tt.field)
			}
		})
	}
}
