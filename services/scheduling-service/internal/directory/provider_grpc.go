//go:build protogen

package directory

import (
	"context"
	"time"

	"github.com/westpoint-clinic/clinicsched/libs/grpcx"
	clinicv1 "github.com/westpoint-clinic/clinicsched/protos/gen/clinic/v1"
)

type DoctorProfile struct {
	DoctorID       string
	LicenseActive  bool
	Specialization string
}

type Provider interface {
	GetDoctorProfile(ctx context.Context, doctorID string) (DoctorProfile, error)
}

type grpcProvider struct {
	client clinicv1.DirectoryServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: clinicv1.NewDirectoryServiceClient(conn)}, nil
}

func (p *grpcProvider) GetDoctorProfile(ctx context.Context, doctorID string) (DoctorProfile, error) {
	resp, err := p.client.GetDoctorProfile(ctx, &clinicv1.DoctorProfileRequest{DoctorId: doctorID})
	if err != nil {
		return DoctorProfile{}, err
	}
	return DoctorProfile{
		DoctorID:       resp.GetDoctorId(),
		LicenseActive:  resp.GetLicenseActive(),
		Specialization: resp.GetSpecialization(),
	}, nil
}
