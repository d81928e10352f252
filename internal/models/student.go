package models

// Student is an aluno as seen by its trainer at
// PersonalTrainer/{personalId}/Aluno/{id}. The flattened copy at Alunos/{id}
// carries the same fields plus PersonalID.
type Student struct {
	ID         string `json:"id"`
	Foto       string `json:"foto,omitempty"`
	Nome       string `json:"nome"`
	Email      string `json:"email"`
	Senha      string `json:"-"`
	Telefone   string `json:"telefone"`
	Idade      string `json:"idade,omitempty"`
	Sexo       string `json:"sexo,omitempty"`
	Grupo      string `json:"grupo,omitempty"`
	PersonalID string `json:"personalId,omitempty"`
}

// StudentFromData maps a nested roster document.
func StudentFromData(id string, data map[string]interface{}) Student {
	return Student{
		ID:       id,
		Foto:     str(data, "foto", ""),
		Nome:     str(data, "nome", "Usuário"),
		Email:    str(data, "email", ""),
		Senha:    str(data, "senha", ""),
		Telefone: str(data, "telefone", ""),
		Idade:    str(data, "idade", ""),
		Sexo:     str(data, "sexo", ""),
		Grupo:    str(data, "grupo", ""),
	}
}

// StudentRootFromData maps the flattened Alunos/{id} document.
func StudentRootFromData(data map[string]interface{}) Student {
	s := StudentFromData(str(data, "id", ""), data)
	s.Nome = str(data, "nome", "")
	s.PersonalID = str(data, "personalId", "")
	return s
}

// Data is the nested payload. The id is stored inside the document too.
func (s Student) Data() map[string]interface{} {
	return map[string]interface{}{
		"id":       s.ID,
		"foto":     s.Foto,
		"nome":     s.Nome,
		"email":    s.Email,
		"senha":    s.Senha,
		"telefone": s.Telefone,
		"idade":    s.Idade,
		"sexo":     s.Sexo,
		"grupo":    s.Grupo,
	}
}

// RootData is the flattened payload with the back-reference to the trainer.
func (s Student) RootData(personalID string) map[string]interface{} {
	data := s.Data()
	data["personalId"] = personalID
	return data
}

// StudentForm is what a trainer fills in to register a new aluno.
type StudentForm struct {
	Foto     string
	Nome     string `validate:"required,min=3"`
	Email    string `validate:"required,email"`
	Senha    string `validate:"omitempty,min=6"`
	Telefone string
	Idade    string `validate:"required,age"`
	Sexo     string `validate:"required,oneof=Masculino Feminino"`
	Grupo    string `validate:"required,oneof=Presencial Online Híbrido"`
}

func (f StudentForm) Student(id string) Student {
	return Student{
		ID:       id,
		Foto:     f.Foto,
		Nome:     f.Nome,
		Email:    f.Email,
		Senha:    f.Senha,
		Telefone: f.Telefone,
		Idade:    f.Idade,
		Sexo:     f.Sexo,
		Grupo:    f.Grupo,
	}
}

// StudentUpdate is the self-service profile edit of an aluno.
type StudentUpdate struct {
	Foto     string
	Nome     string `validate:"required,min=3"`
	Email    string `validate:"required,email"`
	Senha    string `validate:"required,min=6"`
	Telefone string `validate:"phone_br"`
}

func (u StudentUpdate) Data() map[string]interface{} {
	return map[string]interface{}{
		"foto":     u.Foto,
		"nome":     u.Nome,
		"email":    u.Email,
		"senha":    u.Senha,
		"telefone": u.Telefone,
	}
}
