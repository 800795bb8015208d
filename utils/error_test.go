package utils_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ppdev/cmd/utils"
	"github.com/stretchr/testify/assert"
)

func TestJSONSyntaxErrorLocation(t *testing.T) {
	a := assert.New(t)
	data := []byte("{\n  \"backendBaseURL\": \"https://x\",\n  }\n")
	var v map[string]interface{}
	err := json.Unmarshal(data, &v)
	a.NotNil(err)

	se := utils.NewJSONError("pp-dev.config.json", data, err)
	a.Equal(3, se.Line)
	a.Equal(3, se.Column)
	a.Contains(se.Error(), "Config Parse Error (in pp-dev.config.json:3): ")

	lines := se.ContextSource()
	a.Len(lines, 4)
	a.True(lines[2].IsError)
}

func TestSourceErrorWithoutLocation(t *testing.T) {
	a := assert.New(t)
	se := utils.NewError("config", "Invalid Config", "", "templateName must be a non-empty string")
	a.Equal("Invalid Config: templateName must be a non-empty string", se.Error())
	a.Nil(se.ContextSource())
}

func TestNewBuildIfError(t *testing.T) {
	a := assert.New(t)
	a.Nil(utils.NewBuildIfError(nil, "nothing"))

	err := utils.NewBuildIfError(errors.New("boom"), "Failed to read", "file", "package.json")
	var berr *utils.BuildError
	a.True(errors.As(err, &berr))
	a.Equal("Failed to read", berr.Message)
	a.NotEmpty(berr.Stack)

	// Wrapping again appends instead of nesting.
	again := utils.NewBuildIfError(err, "ignored", "extra", 1)
	a.Same(berr, again)
	a.Contains(berr.Args, "extra")
}
