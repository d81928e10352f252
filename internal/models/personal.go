package models

// Personal is the trainer profile stored at PersonalTrainer/{uid}.
type Personal struct {
	ID        string `json:"id"`
	Foto      string `json:"foto"`
	Nome      string `json:"nome"`
	Email     string `json:"email"`
	Senha     string `json:"-"`
	Telefone  string `json:"telefone"`
	Sexo      string `json:"sexo,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	CREF      string `json:"CREF,omitempty"`
}

func PersonalFromData(id string, data map[string]interface{}) Personal {
	return Personal{
		ID:        id,
		Foto:      str(data, "foto", ""),
		Nome:      str(data, "nome", "Usuário"),
		Email:     str(data, "email", ""),
		Senha:     str(data, "senha", ""),
		Telefone:  str(data, "telefone", ""),
		Sexo:      str(data, "sexo", ""),
		Instagram: str(data, "instagram", ""),
		CREF:      str(data, "CREF", ""),
	}
}

func (p Personal) Data() map[string]interface{} {
	return map[string]interface{}{
		"foto":      p.Foto,
		"nome":      p.Nome,
		"email":     p.Email,
		"senha":     p.Senha,
		"telefone":  p.Telefone,
		"sexo":      p.Sexo,
		"instagram": p.Instagram,
		"CREF":      p.CREF,
	}
}

// PersonalSignUp is the trainer registration form.
type PersonalSignUp struct {
	Email    string `validate:"required,email"`
	Senha    string `validate:"required,min=6"`
	Nome     string `validate:"required,min=3"`
	Telefone string `validate:"required,phone_br"`
	Sexo     string `validate:"required,oneof=Masculino Feminino"`
}

// PersonalUpdate is the editable part of the trainer profile.
type PersonalUpdate struct {
	Foto      string
	Nome      string `validate:"required,min=3"`
	Email     string `validate:"required,email"`
	Senha     string `validate:"required,min=6"`
	Telefone  string `validate:"phone_br"`
	Instagram string `validate:"omitempty,instagram"`
	CREF      string `validate:"omitempty,cref"`
}

func (u PersonalUpdate) Data() map[string]interface{} {
	return map[string]interface{}{
		"foto":      u.Foto,
		"nome":      u.Nome,
		"email":     u.Email,
		"senha":     u.Senha,
		"telefone":  u.Telefone,
		"instagram": u.Instagram,
		"CREF":      u.CREF,
	}
}
