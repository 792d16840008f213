package config

const (
	defaultDatasetName   = "isic"
	defaultImagesDir     = "Images"
	defaultMasksDir      = "Segmentation"
	defaultQuarantineDir = "Blacks"
	defaultTolerance     = 2
	defaultWorkers       = 1
	defaultThreshold     = 128
	defaultCrowdMarker   = "crowd"
	defaultServerBind    = "127.0.0.1:8093"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Dataset: Dataset{
			Name:          defaultDatasetName,
			ImagesDir:     defaultImagesDir,
			MasksDir:      defaultMasksDir,
			QuarantineDir: defaultQuarantineDir,
		},
		Encode: Encode{
			Tolerance:       defaultTolerance,
			Workers:         defaultWorkers,
			Threshold:       defaultThreshold,
			ImageExtensions: []string{".jpg", ".jpeg"},
			MaskExtensions:  []string{".png"},
			CrowdMarker:     defaultCrowdMarker,
		},
		Info: Info{
			Description: "ISIC Dataset",
			URL:         "https://isic-archive.com/",
			Version:     "0.1.0",
			Year:        2018,
			Contributor: "epikhdez",
		},
		Licenses: []License{{
			ID:   1,
			Name: "Attribution-NonCommercial-ShareAlike License",
			URL:  "http://creativecommons.org/licenses/by-nc-sa/2.0/",
		}},
		Categories: []Category{{
			ID:            1,
			Name:          "lesion",
			Supercategory: "segmentation",
		}},
		Server: Server{
			Bind: defaultServerBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
