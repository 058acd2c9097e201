package testutil

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// GetTestViper returns a fresh viper instance loaded from the given YAML. The
// backing file lives until the test ends so the instance can re-read it.
func GetTestViper(t testing.TB, yamlContent string) *viper.Viper {
	t.Helper()
	configFile, cleanup, err := WriteStringToTempFileWithExtension(yamlContent, ".yaml")
	require.NoError(t, err)
	t.Cleanup(cleanup)

	testConfig := viper.New()
	testConfig.SetConfigType("yaml")
	testConfig.SetConfigFile(configFile)
	require.NoError(t, testConfig.ReadInConfig())
	return testConfig
}

// WriteStringToTempFileWithExtension is WriteStringToTempFile with a suffix on
// the file name.
func WriteStringToTempFileWithExtension(content string, extension string) (string, func(), error) {
	tempFile, err := os.CreateTemp("", "piwakawaka-*"+extension)
	if err != nil {
		return "", nil, err
	}

	if _, err := tempFile.WriteString(content); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", nil, err
	}

	tempFile.Close()

	cleanup := func() {
		os.Remove(tempFile.Name())
	}

	return tempFile.Name(), cleanup, nil
}

// WriteStringToTempFile returns the file path and a cleanup function.
func WriteStringToTempFile(content string) (string, func(), error) {
	return WriteStringToTempFileWithExtension(content, "")
}
