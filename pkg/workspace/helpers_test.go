package workspace

import "testing"

// stubPlatform pins the GOOS and home directory seen by defaultRoot for the
// duration of the test.
func stubPlatform(t *testing.T, goos string, home func() (string, error)) {
	t.Helper()
	oldGOOS, oldHome := getGOOS, userHomeDir
	t.Cleanup(func() {
		getGOOS = oldGOOS
		userHomeDir = oldHome
	})
	getGOOS = func() string { return goos }
	if home != nil {
		userHomeDir = home
	}
}

func fixedHome(dir string) func() (string, error) {
	return func() (string, error) { return dir, nil }
}
