package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ppdev/cmd"
	"github.com/ppdev/cmd/model"
	"github.com/ppdev/cmd/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTable(t *testing.T) {
	a := assert.New(t)
	a.Nil(commands[0])
	a.Equal("run", commands[model.RUN].Name())
	a.Equal("config", commands[model.CONFIG].Name())
	a.Equal("version", commands[model.VERSION].Name())
	for _, c := range commands[1:] {
		a.NotNil(c.RunWith, c.Name())
	}
}

func TestParseArgs(t *testing.T) {
	a := assert.New(t)
	c := &model.CommandConfig{}
	require.Nil(t, parseArgs(c, []string{"run", "-p", "4000", "--no-watch", "-a", "tpl"}))
	a.Equal(model.RUN, c.Index)
	a.Equal(4000, c.Run.Port)
	a.Equal("localhost", c.Run.Host)
	a.Equal(500, c.Run.Debounce)
	a.True(c.Run.NoWatch)
	abs, _ := filepath.Abs("tpl")
	a.Equal(abs, c.ProjectPath())

	c = &model.CommandConfig{}
	require.Nil(t, parseArgs(c, []string{"-v", "version", "--short"}))
	a.Equal(model.VERSION, c.Index)
	a.True(c.Verbose)
	a.True(c.Version.Short)

	a.NotNil(parseArgs(&model.CommandConfig{}, []string{"deploy"}))
}

func TestIniFile(t *testing.T) {
	a := assert.New(t)
	a.Equal("dev.ini", iniFile([]string{"--ini", "dev.ini", "run"}))
	a.Equal("dev.ini", iniFile([]string{"run", "--ini=dev.ini"}))
	a.Equal("", iniFile([]string{"run", "--", "--ini=dev.ini"}))
	a.Equal("", iniFile([]string{"run"}))
}

func TestVersion(t *testing.T) {
	a := assert.New(t)
	var out bytes.Buffer
	c := &model.CommandConfig{}
	c.Version.Short = true
	a.Nil(versionApp(c, &out))
	a.Equal(cmd.Version+"\n", out.String())

	out.Reset()
	a.Nil(versionApp(&model.CommandConfig{}, &out))
	a.Contains(out.String(), "pp-dev "+cmd.Version)
}

func TestConfigCommand(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name": "tpl"}`), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "pp-dev.config.json"), []byte("{\n  \"appId\": \n}"), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, ".pp-watch.config.json"),
		[]byte(`{"baseURL": "https://legacy.example.com", "appId": 7, "personalAccessToken": "secret"}`), 0o644))

	c := &model.CommandConfig{Index: model.CONFIG}
	c.Config.ProjectPath = dir
	var out bytes.Buffer
	a.Nil(configApp(c, &out))

	s := out.String()
	a.Contains(s, "# source: .pp-watch.config.json (legacy")
	a.Contains(s, "# skipped: Config Parse Error (in pp-dev.config.json:3)")
	a.Contains(s, "templateName: tpl")
	a.Contains(s, "backendBaseURL: https://legacy.example.com")
	a.Contains(s, "portalPageId: 7")
	a.NotContains(s, "secret")
}

func TestConfigCommandMissingProject(t *testing.T) {
	c := &model.CommandConfig{Index: model.CONFIG}
	c.Config.ProjectPath = filepath.Join(t.TempDir(), "missing")
	assert.NotNil(t, configApp(c, &bytes.Buffer{}))
}

func TestConfigCommandExpandsOptions(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name": "tpl"}`), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "pp-dev.config.json"),
		[]byte(`{"distZip": true, "imageOptimizer": {"png": {"quality": 80}}, "miHudLess": true, "integrateMiTopBar": true}`), 0o644))

	c := &model.CommandConfig{Index: model.CONFIG}
	c.Config.ProjectPath = dir
	var out bytes.Buffer
	a.Nil(configApp(c, &out))

	s := out.String()
	a.Contains(s, "outFileName: tpl.zip")
	a.Contains(s, "outDir: dist")
	a.Contains(s, "quality: 80")
	a.Contains(s, "addRootElement: true")
	a.Contains(s, "addSharedComponentsScripts: true")
}

func TestRunReportsLoadFailureOnce(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"version": "1.0.0"}`), 0o644))

	c := &model.CommandConfig{Index: model.RUN}
	c.Run.ProjectPath = dir
	c.Run.Host = "localhost"
	err := runApp(c, &bytes.Buffer{})

	var logged *utils.LoggedError
	a.True(errors.As(err, &logged))
	a.True(errors.Is(err, model.ErrInvalidConfig))
}
