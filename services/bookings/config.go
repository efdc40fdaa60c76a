package bookings

// AppiumConfig holds the connection and capability settings for the
// automation server driving the device.
type AppiumConfig struct {
	ServerURL   string `json:"serverUrl"`
	DeviceName  string `json:"deviceName"`
	AppPackage  string `json:"appPackage"`
	AppActivity string `json:"appActivity"`
	// ResetApp clears app state on session start. Off by default so the
	// logged-in session survives between runs.
	ResetApp          bool `json:"resetApp"`
	NewCommandTimeout int  `json:"newCommandTimeout"`
	// DisplayID targets a specific display on multi-display emulators.
	// Zero means the driver default.
	DisplayID int `json:"displayId"`
}

// Config is the scraper's configuration file shape, read from
// config.json5 with local overrides.
type Config struct {
	Appium       AppiumConfig `json:"appium"`
	DatabasePath string       `json:"databasePath"`
	// LanguageAnchor is the language-pair line used to locate the info
	// block on detail screens.
	LanguageAnchor string `json:"languageAnchor"`
	// DumpDir enables markup dumping when non-empty.
	DumpDir string `json:"dumpDir"`
}

// WithDefaults fills the gaps a sparse config file leaves.
func (c Config) WithDefaults() Config {
	if c.Appium.ServerURL == "" {
		c.Appium.ServerURL = "http://localhost:4723"
	}
	if c.Appium.DeviceName == "" {
		c.Appium.DeviceName = "Android"
	}
	if c.Appium.AppPackage == "" {
		c.Appium.AppPackage = "com.wordsynknetwork.moj"
	}
	if c.Appium.AppActivity == "" {
		c.Appium.AppActivity = ".MainActivity"
	}
	if c.Appium.NewCommandTimeout == 0 {
		c.Appium.NewCommandTimeout = 300
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/bookings.db"
	}
	if c.LanguageAnchor == "" {
		c.LanguageAnchor = "English to Polish"
	}
	return c
}

// Capabilities builds the WebDriver capability set for a new session.
func (c Config) Capabilities() map[string]any {
	caps := map[string]any{
		"platformName":             "Android",
		"appium:automationName":    "UiAutomator2",
		"appium:deviceName":        c.Appium.DeviceName,
		"appium:appPackage":        c.Appium.AppPackage,
		"appium:appActivity":       c.Appium.AppActivity,
		"appium:noReset":           !c.Appium.ResetApp,
		"appium:newCommandTimeout": c.Appium.NewCommandTimeout,
	}
	return caps
}
