package conf

type Local struct {
	Locations []Location
}

type Location struct {
	PathPrefix   string `valid:"required"`
	TargetModule string `valid:"required"`
}
