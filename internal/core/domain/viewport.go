package domain

// ViewMode is the logical camera mode.
type ViewMode string

const (
	ModeWorld        ViewMode = "world"
	ModeCity         ViewMode = "city"
	ModeUserLocation ViewMode = "user-location"
)

// DefaultFlySpeed is the speed factor for every mode transition.
const DefaultFlySpeed = 1.2

// Pose is a camera target.
type Pose struct {
	Center  GeoPoint `json:"center"`
	Zoom    float64  `json:"zoom"`
	Pitch   float64  `json:"pitch"`
	Bearing float64  `json:"bearing"`
	Speed   float64  `json:"speed"`
}

// WorldPose is the fixed regional view shown when no city is selected.
var WorldPose = Pose{
	Center: GeoPoint{Lat: 32.2, Lon: -5.4},
	Zoom:   5.5,
	Speed:  DefaultFlySpeed,
}

// MaxBounds restricts panning to the region around Morocco.
var MaxBounds = Bounds{MinLat: 27, MinLon: -18, MaxLat: 36, MaxLon: -1}

// CityPose returns the camera target for a selected city.
func CityPose(c City) Pose {
	return Pose{Center: c.Center, Zoom: 15, Pitch: 75, Bearing: -17.6, Speed: DefaultFlySpeed}
}

// UserPose centers on a geolocation fix.
func UserPose(p GeoPoint) Pose {
	return Pose{Center: p, Zoom: 16, Pitch: 75, Speed: DefaultFlySpeed}
}

// FocusPose frames a single pin, as used when stepping through a quest.
func FocusPose(p GeoPoint) Pose {
	return Pose{Center: p, Zoom: 16, Pitch: 60, Speed: 1.0}
}

// Padding is the inset, in pixels, used when fitting bounds.
type Padding struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// RoutePadding frames a drawn route.
var RoutePadding = Padding{Top: 80, Bottom: 80, Left: 60, Right: 60}
