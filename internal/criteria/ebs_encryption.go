package criteria

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/alphagov/csw-engine/internal/models"
)

// Volume carries the encryption state of one EBS volume.
type Volume struct {
	VolumeID  string `json:"volume_id"`
	Name      string `json:"name,omitempty"`
	Region    string `json:"region"`
	Encrypted bool   `json:"encrypted"`
}

// EBSVolumeEncryption flags unencrypted EBS volumes.
func EBSVolumeEncryption() Criterion {
	return Criterion{
		Name:          "aws_ebs_volume_encryption",
		Active:        true,
		Severity:      2,
		IsRegional:    true,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::EC2::Volume",
		Title:         "EBS volumes are encrypted",
		Description:   "Checks that every EBS volume is encrypted at rest.",
		WhyIsItImportant: "Unencrypted volumes leak their full contents through snapshots, " +
			"decommissioned hardware, or any account principal able to attach them.",
		HowDoIFixIt: "Snapshot the volume, copy the snapshot with encryption enabled, and " +
			"recreate the volume from the encrypted copy. Enable encryption-by-default " +
			"for the region to stop new unencrypted volumes appearing.",
		GetData:   fetchVolumes,
		Translate: volumeIdentity,
		Evaluate:  evaluateVolumeEncryption,
	}
}

func fetchVolumes(ctx context.Context, req Request) ([]Item, error) {
	out, err := req.Clients.EC2.DescribeVolumes(ctx, &ec2svc.DescribeVolumesInput{})
	if err != nil {
		return nil, fmt.Errorf("describe volumes in %s: %w", req.Region, err)
	}

	items := make([]Item, 0, len(out.Volumes))
	for _, vol := range out.Volumes {
		v := Volume{
			VolumeID:  aws.ToString(vol.VolumeId),
			Region:    req.Region,
			Encrypted: aws.ToBool(vol.Encrypted),
		}
		for _, tag := range vol.Tags {
			if aws.ToString(tag.Key) == "Name" {
				v.Name = aws.ToString(tag.Value)
			}
		}
		items = append(items, Item{Region: req.Region, Raw: v})
	}
	return items, nil
}

func volumeIdentity(item Item) Identity {
	vol, ok := item.Raw.(Volume)
	if !ok {
		return Identity{Region: item.Region}
	}
	return Identity{
		ResourceID:   vol.VolumeID,
		ResourceName: vol.Name,
		Region:       vol.Region,
	}
}

func evaluateVolumeEncryption(item Item, _ []string) models.Evaluation {
	vol, ok := item.Raw.(Volume)
	if !ok {
		return models.NewEvaluation("", "AWS::EC2::Volume", models.NotApplicableResource,
			"item is not a volume")
	}

	if !vol.Encrypted {
		return models.NewEvaluation(vol.VolumeID, "AWS::EC2::Volume", models.NonCompliantResource,
			fmt.Sprintf("volume %q is not encrypted", vol.VolumeID))
	}
	return models.NewEvaluation(vol.VolumeID, "AWS::EC2::Volume", models.CompliantResource, "")
}
