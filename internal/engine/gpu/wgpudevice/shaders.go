package wgpudevice

// VertexSource is the built-in vertex stage. Group 0 holds the camera;
// fragment stages read the material from group 1.
const VertexSource = `struct Camera {
    view_proj: mat4x4<f32>,
};
@group(0) @binding(0) var<uniform> camera: Camera;

struct VertexIn {
    @location(0) pos: vec3<f32>,
    @location(1) uv: vec3<f32>,
    @location(2) normal: vec3<f32>,
    @location(3) color: vec3<f32>,
    @location(4) m0: vec4<f32>,
    @location(5) m1: vec4<f32>,
    @location(6) m2: vec4<f32>,
    @location(7) m3: vec4<f32>,
};

struct VertexOut {
    @builtin(position) clip: vec4<f32>,
    @location(0) world: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
    @location(3) color: vec3<f32>,
};

@vertex
fn vs_main(in: VertexIn) -> VertexOut {
    let model = mat4x4<f32>(in.m0, in.m1, in.m2, in.m3);
    let world = model * vec4<f32>(in.pos, 1.0);
    var out: VertexOut;
    out.clip = camera.view_proj * world;
    out.world = world.xyz;
    out.normal = (model * vec4<f32>(in.normal, 0.0)).xyz;
    out.uv = in.uv.xy;
    out.color = in.color;
    return out;
}
`

// FragmentSource is the default fragment stage.
const FragmentSource = `struct Material {
    color: vec4<f32>,
    specular: vec4<f32>,
    params: array<vec4<f32>, 2>,
};
@group(1) @binding(0) var<uniform> material: Material;
@group(1) @binding(1) var diffuse_map: texture_2d<f32>;
@group(1) @binding(2) var diffuse_sampler: sampler;

struct FragmentIn {
    @location(0) world: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) uv: vec2<f32>,
    @location(3) color: vec3<f32>,
};

@fragment
fn fs_main(in: FragmentIn) -> @location(0) vec4<f32> {
    let light = normalize(vec3<f32>(0.4, 1.0, 0.6));
    let n = normalize(in.normal);
    let base = textureSample(diffuse_map, diffuse_sampler, in.uv).rgb * material.color.rgb * in.color;
    let diffuse = max(dot(n, light), 0.0);
    return vec4<f32>(base * (0.2 + 0.8 * diffuse), material.color.a);
}
`

const (
	vertexEntry   = "vs_main"
	fragmentEntry = "fs_main"
)
