package handlers

import (
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
)

var (
	errNameTaken     = errors.New("name already exists")
	errUsernameTaken = errors.New("username already exists")
	errEmailTaken    = errors.New("email already exists")
)

func marshalJSONColumn(value interface{}) (datatypes.JSON, error) {
	if value == nil {
		return nil, nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}
