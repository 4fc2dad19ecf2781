package routes

import (
	"context"
	"fmt"
	"strings"

	"github.com/lofty-sh/lofty/pkg/cloud"
)

// Rebuild replaces the API's resource tree with the routes the spec
// declares. Every method integrates with the function through an AWS_PROXY
// integration qualified by the lambdaVersion stage variable, so one route
// tree serves every deployed stage.
func Rebuild(ctx context.Context, gw cloud.GatewayService, apiID string, spec *Spec, caller cloud.CallerIdentity, functionArn string) error {
	existing, err := gw.ListResources(ctx, apiID)
	if err != nil {
		return err
	}

	rootID := ""
	for _, res := range existing {
		if res.Path == "/" {
			rootID = res.ID
			continue
		}
		// Dropping a first-level resource drops its subtree with it.
		if pathDepth(res.Path) == 1 {
			if err := gw.DeleteResource(ctx, apiID, res.ID); err != nil && !cloud.IsNotFound(err) {
				return err
			}
		}
	}
	if rootID == "" {
		return fmt.Errorf("API %s has no root resource", apiID)
	}

	uri := invocationURI(caller, functionArn)
	resourceIDs := map[string]string{"": rootID}

	for _, path := range spec.Paths() {
		parentID := rootID
		if path != "" {
			prefix := ""
			for _, part := range strings.Split(path, "/") {
				if prefix == "" {
					prefix = part
				} else {
					prefix = prefix + "/" + part
				}
				id, ok := resourceIDs[prefix]
				if !ok {
					id, err = gw.CreateResource(ctx, apiID, parentID, part)
					if err != nil {
						return err
					}
					resourceIDs[prefix] = id
				}
				parentID = id
			}
		}
		for _, method := range spec.Routes[path] {
			method = strings.ToUpper(method)
			if err := gw.PutMethod(ctx, apiID, parentID, method); err != nil {
				return err
			}
			if err := gw.PutProxyIntegration(ctx, apiID, parentID, method, uri); err != nil {
				return err
			}
		}
	}
	return nil
}

// invocationURI builds the gateway-side integration endpoint for the
// function, qualified by the lambdaVersion stage variable.
func invocationURI(caller cloud.CallerIdentity, functionArn string) string {
	return fmt.Sprintf("arn:%s:apigateway:%s:lambda:path/2015-03-31/functions/%s:${stageVariables.lambdaVersion}/invocations",
		caller.Partition, caller.Region, functionArn)
}

// InvokeSourceArn is the execute-api source covering every stage and route
// of the API, used when granting the gateway invoke permission.
func InvokeSourceArn(caller cloud.CallerIdentity, apiID string) string {
	return fmt.Sprintf("arn:%s:execute-api:%s:%s:%s/*/*", caller.Partition, caller.Region, caller.AccountID, apiID)
}

// StageURL is the externally reachable base URL of a deployed stage.
func StageURL(caller cloud.CallerIdentity, apiID, stage string) string {
	return fmt.Sprintf("https://%s.execute-api.%s.amazonaws.com/%s", apiID, caller.Region, stage)
}

func pathDepth(path string) int {
	return strings.Count(strings.TrimSuffix(path, "/"), "/")
}
