package criteria

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// SecurityGroup is the normalised shape the security-group criteria operate
// on. Both IPv4 and IPv6 ranges are flattened into Ranges.
type SecurityGroup struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Region  string         `json:"region"`
	Ingress []IPPermission `json:"ingress"`
	Egress  []IPPermission `json:"egress"`
}

// IPPermission is one ingress or egress rule of a security group. FromPort
// and ToPort are nil when the rule's protocol carries no port range (the
// "-1" all-protocols wildcard).
type IPPermission struct {
	Protocol string   `json:"protocol"`
	FromPort *int32   `json:"from_port,omitempty"`
	ToPort   *int32   `json:"to_port,omitempty"`
	Ranges   []string `json:"ranges"`
}

// fetchSecurityGroups lists every security group in the request's region.
// Shared by the SSH-ingress and egress-restriction criteria.
func fetchSecurityGroups(ctx context.Context, req Request) ([]Item, error) {
	out, err := req.Clients.EC2.DescribeSecurityGroups(ctx, &ec2svc.DescribeSecurityGroupsInput{})
	if err != nil {
		return nil, fmt.Errorf("describe security groups in %s: %w", req.Region, err)
	}

	items := make([]Item, 0, len(out.SecurityGroups))
	for _, sg := range out.SecurityGroups {
		group := SecurityGroup{
			ID:     aws.ToString(sg.GroupId),
			Name:   aws.ToString(sg.GroupName),
			Region: req.Region,
		}
		for _, perm := range sg.IpPermissions {
			group.Ingress = append(group.Ingress, normalisePermission(perm.IpProtocol, perm.FromPort, perm.ToPort, ipRanges(perm)))
		}
		for _, perm := range sg.IpPermissionsEgress {
			group.Egress = append(group.Egress, normalisePermission(perm.IpProtocol, perm.FromPort, perm.ToPort, ipRanges(perm)))
		}
		items = append(items, Item{Region: req.Region, Raw: group})
	}
	return items, nil
}

func normalisePermission(protocol *string, from, to *int32, ranges []string) IPPermission {
	return IPPermission{
		Protocol: aws.ToString(protocol),
		FromPort: from,
		ToPort:   to,
		Ranges:   ranges,
	}
}

// ipRanges flattens a permission's IPv4 and IPv6 CIDR ranges into one list.
func ipRanges(perm ec2types.IpPermission) []string {
	var ranges []string
	for _, r := range perm.IpRanges {
		ranges = append(ranges, aws.ToString(r.CidrIp))
	}
	for _, r := range perm.Ipv6Ranges {
		ranges = append(ranges, aws.ToString(r.CidrIpv6))
	}
	return ranges
}

// securityGroupIdentity is the shared Translate for security-group criteria.
func securityGroupIdentity(item Item) Identity {
	sg, ok := item.Raw.(SecurityGroup)
	if !ok {
		return Identity{Region: item.Region}
	}
	return Identity{
		ResourceID:   sg.ID,
		ResourceName: sg.Name,
		Region:       sg.Region,
	}
}
