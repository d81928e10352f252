package firestore

import (
	"errors"
	"testing"

	"personal-connect/internal/repository"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestConvertServerTimestamp(t *testing.T) {
	in := map[string]interface{}{
		"dataCriacao": repository.ServerTimestamp,
		"nested":      map[string]interface{}{"at": repository.ServerTimestamp},
		"nome":        "Peito",
	}
	out := toFirestore(in)
	if out["dataCriacao"] != firestore.ServerTimestamp {
		t.Errorf("dataCriacao = %v", out["dataCriacao"])
	}
	if out["nested"].(map[string]interface{})["at"] != firestore.ServerTimestamp {
		t.Error("nested sentinel not converted")
	}
	if !repository.IsServerTimestamp(in["dataCriacao"]) {
		t.Error("input map was modified")
	}
}

func TestUpdatesUseSingleSegmentPaths(t *testing.T) {
	ups := updates(map[string]interface{}{"CREF": "CREF123456-G/SP"})
	if len(ups) != 1 || len(ups[0].FieldPath) != 1 || ups[0].FieldPath[0] != "CREF" {
		t.Errorf("updates = %+v", ups)
	}
}

func TestMapErr(t *testing.T) {
	err := mapErr("update Alunos/a1", status.Error(codes.NotFound, "no entity"))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("NotFound not mapped: %v", err)
	}
	other := errors.New("deadline")
	if err := mapErr("tx", other); !errors.Is(err, other) || errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unexpected mapping: %v", err)
	}
}
