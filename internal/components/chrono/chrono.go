package chrono

import "time"

// BankLocation is the timezone the bank's servers interpret dates in.
const BankLocation = "Australia/Perth"

type API interface {
	Now() time.Time
}

type StandardImpl struct {
	location *time.Location
}

func NewStandardImpl() (StandardImpl, error) {
	location, err := time.LoadLocation(BankLocation)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}
