package criteria

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2svc "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/alphagov/csw-engine/internal/models"
)

// LoadBalancer carries the listener protocols of one load balancer.
type LoadBalancer struct {
	ARN       string   `json:"arn"`
	Name      string   `json:"name"`
	Region    string   `json:"region"`
	Listeners []string `json:"listeners"`
}

// ELBInsecureListener flags load balancers with plain HTTP listeners.
// A load balancer with no listeners at all is not applicable.
func ELBInsecureListener() Criterion {
	return Criterion{
		Name:          "aws_elbv2_insecure_listener",
		Active:        true,
		Severity:      2,
		IsRegional:    true,
		ExceptionType: ExceptionResource,
		Aggregation:   AggregateAll,
		ResourceType:  "AWS::ElasticLoadBalancingV2::LoadBalancer",
		Title:         "Load balancers terminate TLS",
		Description:   "Checks that application load balancers have no plain HTTP listeners.",
		WhyIsItImportant: "An HTTP listener carries credentials and session tokens in " +
			"cleartext over networks the service does not control.",
		HowDoIFixIt: "Replace the HTTP listener with an HTTPS listener holding an ACM " +
			"certificate, or keep port 80 solely as a redirect to 443.",
		GetData:   fetchLoadBalancers,
		Translate: loadBalancerIdentity,
		Evaluate:  evaluateListeners,
	}
}

func fetchLoadBalancers(ctx context.Context, req Request) ([]Item, error) {
	out, err := req.Clients.ELBv2.DescribeLoadBalancers(ctx, &elbv2svc.DescribeLoadBalancersInput{})
	if err != nil {
		return nil, fmt.Errorf("describe load balancers in %s: %w", req.Region, err)
	}

	var items []Item
	for _, lb := range out.LoadBalancers {
		entry := LoadBalancer{
			ARN:    aws.ToString(lb.LoadBalancerArn),
			Name:   aws.ToString(lb.LoadBalancerName),
			Region: req.Region,
		}
		listeners, err := req.Clients.ELBv2.DescribeListeners(ctx, &elbv2svc.DescribeListenersInput{
			LoadBalancerArn: lb.LoadBalancerArn,
		})
		if err != nil {
			return nil, fmt.Errorf("describe listeners for %q: %w", entry.Name, err)
		}
		for _, listener := range listeners.Listeners {
			entry.Listeners = append(entry.Listeners, string(listener.Protocol))
		}
		items = append(items, Item{Region: req.Region, Raw: entry})
	}
	return items, nil
}

func loadBalancerIdentity(item Item) Identity {
	lb, ok := item.Raw.(LoadBalancer)
	if !ok {
		return Identity{Region: item.Region}
	}
	return Identity{
		ResourceID:   lb.ARN,
		ResourceName: lb.Name,
		Region:       lb.Region,
	}
}

func evaluateListeners(item Item, _ []string) models.Evaluation {
	lb, ok := item.Raw.(LoadBalancer)
	if !ok {
		return models.NewEvaluation("", "AWS::ElasticLoadBalancingV2::LoadBalancer",
			models.NotApplicableResource, "item is not a load balancer")
	}

	if len(lb.Listeners) == 0 {
		return models.NewEvaluation(lb.ARN, "AWS::ElasticLoadBalancingV2::LoadBalancer",
			models.NotApplicableResource, "load balancer has no listeners")
	}

	var insecure []string
	for _, protocol := range lb.Listeners {
		if strings.EqualFold(protocol, "HTTP") {
			insecure = append(insecure, protocol)
		}
	}
	if len(insecure) > 0 {
		return models.NewEvaluation(lb.ARN, "AWS::ElasticLoadBalancingV2::LoadBalancer",
			models.NonCompliantResource,
			fmt.Sprintf("load balancer %q has %d plain HTTP listener(s)", lb.Name, len(insecure)))
	}
	return models.NewEvaluation(lb.ARN, "AWS::ElasticLoadBalancingV2::LoadBalancer",
		models.CompliantResource, "")
}
