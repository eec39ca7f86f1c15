package status

import (
	"context"
	"fmt"
	"os"

	routeclientset "github.com/openshift/client-go/route/clientset/versioned/typed/route/v1"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/clientcmd"
)

// Where the cluster monitoring stack exposes Prometheus on OpenShift.
const (
	DefaultPrometheusRouteNamespace = "openshift-monitoring"
	DefaultPrometheusRouteName      = "prometheus-k8s"
	DefaultKubeconfigPath           = "/etc/kubeconfig/config"
)

// KubeconfigPath returns $KUBECONFIG, or DefaultKubeconfigPath when it is unset.
func KubeconfigPath() string {
	if path := os.Getenv("KUBECONFIG"); path != "" {
		return path
	}
	return DefaultKubeconfigPath
}

// DiscoverPrometheusURL resolves the address of the Prometheus exposed by the named route.
func DiscoverPrometheusURL(ctx context.Context, routes routeclientset.RoutesGetter, namespace, name string) (string, error) {
	route, err := routes.Routes(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get route %s/%s: %w", namespace, name, err)
	}
	if route.Spec.Host == "" {
		return "", fmt.Errorf("route %s/%s has no host", namespace, name)
	}
	if route.Spec.TLS != nil {
		return "https://" + route.Spec.Host, nil
	}
	return "http://" + route.Spec.Host, nil
}

// NewPrometheusClientFromKubeconfig finds Prometheus through the cluster route and authenticates
// with the bearer token of the kubeconfig at kubeconfigPath, unless bearerToken overrides it.
func NewPrometheusClientFromKubeconfig(ctx context.Context, kubeconfigPath, namespace, name, bearerToken string) (v1.API, string, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfigPath, err)
	}

	routeClient, err := routeclientset.NewForConfig(config)
	if err != nil {
		return nil, "", err
	}

	address, err := DiscoverPrometheusURL(ctx, routeClient, namespace, name)
	if err != nil {
		return nil, "", err
	}

	if bearerToken == "" {
		bearerToken = config.BearerToken
	}
	client, err := NewPrometheusClient(address, bearerToken)
	if err != nil {
		return nil, "", err
	}
	return client, address, nil
}
