package imagesvc

// UploadPolicy holds the validation policy for incoming uploads.
// All bounds are enforced by the Validator before any decode or write.
type UploadPolicy struct {
	// MaxUploadSize is the maximum allowed upload size in bytes.
	// Default is 5MiB.
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" default:"5242880"`

	// MinDimension is the minimum allowed width and height in pixels.
	MinDimension int `env:"MIN_DIMENSION" default:"100"`

	// MaxDimension is the maximum allowed width and height in pixels.
	MaxDimension int `env:"MAX_DIMENSION" default:"8192"`

	// ScanWindow is the number of leading bytes scanned for suspicious
	// markup before the content is sniffed.
	ScanWindow int `env:"SCAN_WINDOW" default:"1024"`

	// AllowedExtensions lists the declared-filename extensions accepted for
	// upload. The extension is metadata only; content decisions are made by
	// sniffing.
	AllowedExtensions []string `env:"ALLOWED_EXTENSIONS" default:"jpg,jpeg,png,webp"`

	// DeniedExtensions lists executable and script extensions that are
	// rejected outright, before the allowlist is consulted.
	DeniedExtensions []string `env:"DENIED_EXTENSIONS" default:"exe,bat,cmd,com,sh,bash,ps1,php,phtml,pl,py,cgi,js,mjs,jar,msi,dll,scr,vbs,wsf,hta"`
}

// CompressionPolicy holds the re-encode policy applied to validated uploads.
type CompressionPolicy struct {
	// MaxWidth and MaxHeight define the bounding box images are resized to
	// fit inside, preserving aspect ratio. Images already inside the box are
	// never upscaled.
	MaxWidth  int `env:"MAX_WIDTH" default:"1920"`
	MaxHeight int `env:"MAX_HEIGHT" default:"1920"`

	// TargetBytes is the byte budget for the encoded output. Best-effort:
	// the budget may be exceeded when QualityFloor is reached first.
	TargetBytes int `env:"TARGET_BYTES" default:"102400"`

	// InitialQuality, QualityFloor and QualityStep drive the bounded
	// quality-reduction loop.
	InitialQuality int `env:"INITIAL_QUALITY" default:"85"`
	QualityFloor   int `env:"QUALITY_FLOOR" default:"20"`
	QualityStep    int `env:"QUALITY_STEP" default:"10"`

	// Interpolator specifies the image scaling algorithm to use.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`
}
